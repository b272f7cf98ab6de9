// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/journal"
	"github.com/flowd-project/flowd/lib/service"
)

// streamWriteTimeout bounds writing one stream message. A subscriber
// that cannot take a message in this time is disconnected.
const streamWriteTimeout = 10 * time.Second

// stream is one subscribe connection.
type stream struct {
	server  *Server
	conn    net.Conn
	encoder *codec.Encoder
	suites  []string
	logger  *slog.Logger

	// last is the sequence of the newest batch the stream reflects.
	last uint64
}

func (st *stream) send(value any) error {
	st.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return st.encoder.Encode(value)
}

// handleSubscribe serves the subscribe stream: ack, catch-up or
// snapshot, then live frames and heartbeats until either side leaves.
func (s *Server) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	st := &stream{server: s, conn: conn, encoder: codec.NewEncoder(conn)}
	refuse := func(err error) {
		if err := st.send(service.StreamAck{Error: err.Error()}); err != nil {
			s.logger.Debug("writing stream refusal failed", "error", err)
		}
	}

	decoded, err := command.Decode(raw, service.PeerFrom(ctx).User)
	if err != nil {
		refuse(err)
		return
	}
	request, ok := decoded.(*command.Subscribe)
	if !ok {
		refuse(fmt.Errorf("%s is not a stream action", decoded.Name()))
		return
	}
	if err := authgate.Authenticate(request, s); err != nil {
		s.logger.Info("subscribe refused", "user", request.User(), "suites", request.Suites, "error", err)
		refuse(err)
		return
	}
	st.suites = request.Filter()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	subscriber, initial, err := s.attach(ctx, st.suites, request.After)
	if err != nil {
		refuse(err)
		return
	}
	defer subscriber.Close()
	st.logger = s.logger.With("subscriber", subscriber.ID.String(), "user", request.User())

	// Clients send nothing after the request, so a read returning means
	// the client has gone.
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	if err := st.send(service.StreamAck{OK: true}); err != nil {
		st.logger.Debug("writing stream ack failed", "error", err)
		return
	}
	st.logger.Info("subscriber attached", "suites", st.suites, "after", request.After, "messages", len(initial))
	for _, message := range initial {
		if err := st.send(message); err != nil {
			st.logger.Debug("subscriber write failed", "error", err)
			return
		}
		st.last = message.Sequence
	}
	if len(initial) == 0 {
		st.last = request.After
	}

	if err := st.run(ctx, subscriber); err != nil {
		st.logger.Info("subscriber detached", "error", err)
		return
	}
	st.logger.Info("subscriber detached")
}

// run forwards live frames until ctx ends or a write fails.
func (st *stream) run(ctx context.Context, subscriber *delta.Subscriber) error {
	var heartbeat <-chan time.Time
	if st.server.heartbeat > 0 {
		ticker := st.server.clock.NewTicker(st.server.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame := <-subscriber.Frames():
			if subscriber.TakeResync() {
				if err := st.resync(subscriber); err != nil {
					return err
				}
				continue
			}
			if frame.Sequence <= st.last {
				continue
			}
			if err := st.send(delta.FrameMessage(frame)); err != nil {
				return err
			}
			st.last = frame.Sequence

		case <-heartbeat:
			if subscriber.TakeResync() {
				if err := st.resync(subscriber); err != nil {
					return err
				}
				continue
			}
			if err := st.send(delta.Message{Kind: delta.MessageHeartbeat, Sequence: st.last}); err != nil {
				return err
			}
		}
	}
}

// resync replaces a lagging subscriber's view with a fresh snapshot.
// No batch can be published while the read lock is held, so every
// frame left after the drain is newer than the snapshot.
func (st *stream) resync(subscriber *delta.Subscriber) error {
	s := st.server
	s.mu.RLock()
	subscriber.Drain()
	snapshot := s.defs.CloneSuites(st.suites)
	sequence := s.publisher.Sequence()
	s.mu.RUnlock()

	message, err := delta.SnapshotMessage(delta.MessageResync, snapshot, sequence, s.snapshotTag)
	if err != nil {
		return err
	}
	st.logger.Warn("subscriber fell behind, sending snapshot", "sequence", sequence)
	if err := st.send(message); err != nil {
		return err
	}
	st.last = sequence
	return nil
}

// attach registers a subscriber and returns the messages that bring a
// replica holding batch after up to the subscription point. Catch-up
// comes from the journal when possible, otherwise a snapshot is sent.
func (s *Server) attach(ctx context.Context, suites []string, after uint64) (*delta.Subscriber, []delta.Message, error) {
	s.mu.RLock()
	subscriber := s.publisher.Subscribe(suites)
	sequence := s.publisher.Sequence()
	catchUp := after > 0 && after <= sequence && s.journal != nil
	var message delta.Message
	var err error
	if !catchUp {
		message, err = delta.SnapshotMessage(delta.MessageSnapshot, s.defs.CloneSuites(suites), sequence, s.snapshotTag)
	}
	s.mu.RUnlock()

	if !catchUp {
		if err != nil {
			subscriber.Close()
			return nil, nil, err
		}
		return subscriber, []delta.Message{message}, nil
	}

	messages, err := s.catchUp(ctx, suites, after, sequence)
	if err != nil {
		subscriber.Close()
		if !errors.Is(err, journal.ErrTrimmed) {
			s.logger.Warn("journal catch-up failed, sending snapshot", "after", after, "error", err)
		}
		return s.attach(ctx, suites, 0)
	}
	return subscriber, messages, nil
}

// catchUp reads the journaled batches after after, up to and including
// through, filtered for suites.
func (s *Server) catchUp(ctx context.Context, suites []string, after, through uint64) ([]delta.Message, error) {
	frames, err := s.journal.Since(ctx, after)
	if err != nil {
		return nil, err
	}
	messages := make([]delta.Message, 0, len(frames))
	next := after + 1
	for _, frame := range frames {
		if frame.Sequence > through {
			break
		}
		if frame.Sequence != next {
			return nil, fmt.Errorf("journal gap: want batch %d, found %d", next, frame.Sequence)
		}
		filtered, err := frame.Filtered(suites)
		if err != nil {
			return nil, fmt.Errorf("filtering journaled batch %d: %w", frame.Sequence, err)
		}
		messages = append(messages, delta.FrameMessage(filtered))
		next++
	}
	if next != through+1 {
		return nil, fmt.Errorf("journal ends at batch %d, want %d", next-1, through)
	}
	return messages, nil
}
