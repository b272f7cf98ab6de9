// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package delta

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/memento"
)

// SubscriberBufferSize is the default number of frames a subscriber
// may fall behind before it is marked for resync.
const SubscriberBufferSize = 256

// Journal persists published frames. Append is called under the
// publisher lock in sequence order; an error aborts the publish and
// the sequence number is not consumed.
type Journal interface {
	Append(ctx context.Context, frame Frame) error
}

// Publisher numbers batches and distributes them. Callers serialize
// Publish with their own tree mutations so that frame order matches
// the order changes were applied.
type Publisher struct {
	clock      clock.Clock
	journal    Journal
	logger     *slog.Logger
	bufferSize int

	mu          sync.Mutex
	sequence    uint64
	subscribers []*Subscriber
}

// NewPublisher returns a publisher whose next batch is numbered
// sequence+1. journal may be nil.
func NewPublisher(sequence uint64, journal Journal, clk clock.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{
		clock:      clk,
		journal:    journal,
		logger:     logger,
		bufferSize: SubscriberBufferSize,
		sequence:   sequence,
	}
}

// SetSubscriberBuffer sets the channel capacity of subscribers created
// afterwards. Values below one are ignored.
func (p *Publisher) SetSubscriberBuffer(size int) {
	if size < 1 {
		return
	}
	p.mu.Lock()
	p.bufferSize = size
	p.mu.Unlock()
}

// Sequence returns the number of the last published batch.
func (p *Publisher) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sequence
}

// Publish packages compounds as the next batch, journals it and fans
// it out. A command that changed nothing publishes nothing: the
// returned frame is nil and the sequence does not advance.
func (p *Publisher) Publish(ctx context.Context, command, user string, compounds []memento.Compound) (*Frame, error) {
	if len(compounds) == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	batch := Batch{
		Sequence:  p.sequence + 1,
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()),
		Command:   command,
		User:      user,
		Time:      now,
		Compounds: compounds,
	}
	frame, err := EncodeBatch(batch)
	if err != nil {
		return nil, err
	}
	if p.journal != nil {
		if err := p.journal.Append(ctx, frame); err != nil {
			return nil, fmt.Errorf("journaling batch %d: %w", frame.Sequence, err)
		}
	}
	p.sequence = frame.Sequence
	p.fanOut(batch, frame)
	return &frame, nil
}

// fanOut delivers frame to every live subscriber. Must be called with
// p.mu held. Disconnected subscribers are dropped from the registry.
func (p *Publisher) fanOut(batch Batch, frame Frame) {
	// Iterate in reverse so that removals don't shift unvisited elements.
	for i := len(p.subscribers) - 1; i >= 0; i-- {
		subscriber := p.subscribers[i]

		select {
		case <-subscriber.done:
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			continue
		default:
		}

		delivered := frame
		if subscriber.suites != nil {
			filtered := batch
			filtered.Compounds = memento.Filter(batch.Compounds, subscriber.suites)
			var err error
			delivered, err = EncodeBatch(filtered)
			if err != nil {
				p.logger.Error("filtering batch for subscriber failed",
					"subscriber", subscriber.ID, "sequence", frame.Sequence, "error", err)
				subscriber.resync.Store(true)
				continue
			}
		}

		select {
		case subscriber.frames <- delivered:
		default:
			if !subscriber.resync.Swap(true) {
				p.logger.Warn("subscriber fell behind, marking for resync",
					"subscriber", subscriber.ID, "sequence", frame.Sequence)
			}
		}
	}
}

// Subscribe registers a subscriber for frames published after the
// call returns. suites restricts delivery to those suites; nil means
// the whole tree. Close the subscriber when the stream ends.
func (p *Publisher) Subscribe(suites []string) *Subscriber {
	p.mu.Lock()
	subscriber := &Subscriber{
		ID:     ulid.MustNew(ulid.Timestamp(p.clock.Now()), ulid.DefaultEntropy()),
		suites: suites,
		frames: make(chan Frame, p.bufferSize),
		done:   make(chan struct{}),
	}
	p.subscribers = append(p.subscribers, subscriber)
	p.mu.Unlock()
	return subscriber
}

// Subscribers returns the number of registered subscribers, including
// closed ones not yet swept by a publish.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

// Subscriber is one registered frame consumer.
type Subscriber struct {
	ID ulid.ULID

	suites    []string
	frames    chan Frame
	resync    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Suites returns the suite filter, nil for the whole tree.
func (s *Subscriber) Suites() []string { return s.suites }

// Frames returns the channel frames are delivered on.
func (s *Subscriber) Frames() <-chan Frame { return s.frames }

// TakeResync reports whether frames were dropped since the last call
// and clears the flag. After a true result every frame still buffered
// is stale and the consumer must start again from a snapshot.
func (s *Subscriber) TakeResync() bool {
	return s.resync.CompareAndSwap(true, false)
}

// Drain discards every buffered frame.
func (s *Subscriber) Drain() {
	for {
		select {
		case <-s.frames:
		default:
			return
		}
	}
}

// Close unregisters the subscriber. It is removed from the publisher
// on the next publish.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
