// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/replica"
)

// MirrorConfig configures a Mirror.
type MirrorConfig struct {
	// Suites limits the replica to the named suites. Empty mirrors the
	// whole tree.
	Suites []string

	// HeartbeatTimeout ends a session that has been silent this long.
	// Set it to a few server heartbeat intervals; zero disables it.
	HeartbeatTimeout time.Duration

	// RetryDelay spaces reconnection attempts. Zero uses one second.
	RetryDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Mirror keeps a replica in step with the server.
type Mirror struct {
	client  *Client
	replica *replica.Replica
	config  MirrorConfig

	readyOnce sync.Once
	ready     chan struct{}
}

// Mirror returns a Mirror feeding r. Call Run to start it.
func (c *Client) Mirror(r *replica.Replica, config MirrorConfig) *Mirror {
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{client: c, replica: r, config: config, ready: make(chan struct{})}
}

// Ready is closed once the replica has been reset from its first
// snapshot.
func (m *Mirror) Ready() <-chan struct{} { return m.ready }

// Run mirrors until ctx is cancelled, reconnecting after every lost
// session. It returns nil on cancellation.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		m.config.Logger.Warn("replica session ended, reconnecting",
			"error", err,
			"sequence", m.replica.Sequence(),
			"resync", m.replica.ResyncRequired(),
			"retry_in", m.config.RetryDelay,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-m.config.Clock.After(m.config.RetryDelay):
		}
	}
}

// errResyncRequested ends a session so the next one starts from a
// snapshot.
var errResyncRequested = errors.New("replica requested a resync")

// session runs one subscribe stream to completion.
func (m *Mirror) session(ctx context.Context) error {
	// A pending signal is satisfied by the snapshot this session asks
	// for.
	select {
	case <-m.replica.Resync():
	default:
	}
	var after uint64
	if !m.replica.ResyncRequired() {
		after = m.replica.Sequence()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	fields, err := command.Fields(command.NewSubscribe(after, m.config.Suites...))
	if err != nil {
		return err
	}
	stream, err := m.client.service.OpenStream(ctx, command.ActionSubscribe, fields)
	if err != nil {
		return err
	}
	defer stream.Close()
	m.config.Logger.Debug("replica subscribed", "after", after, "suites", m.config.Suites)

	messages := make(chan delta.Message)
	failed := make(chan error, 1)
	go func() {
		for {
			var message delta.Message
			if err := stream.Decode(&message); err != nil {
				failed <- err
				return
			}
			select {
			case messages <- message:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var silence <-chan time.Time
		if m.config.HeartbeatTimeout > 0 {
			silence = m.config.Clock.After(m.config.HeartbeatTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failed:
			return fmt.Errorf("reading stream: %w", err)
		case <-silence:
			return fmt.Errorf("no message from server in %s", m.config.HeartbeatTimeout)
		case <-m.replica.Resync():
			return errResyncRequested
		case message := <-messages:
			if err := m.handle(message); err != nil {
				return err
			}
		}
	}
}

func (m *Mirror) handle(message delta.Message) error {
	switch message.Kind {
	case delta.MessageSnapshot, delta.MessageResync:
		tree, err := message.Defs()
		if err != nil {
			m.replica.RequestResync(err.Error())
			return err
		}
		m.replica.Reset(tree, message.Sequence)
		m.config.Logger.Info("replica reset from snapshot", "kind", message.Kind, "sequence", message.Sequence)
		m.readyOnce.Do(func() { close(m.ready) })
		return nil

	case delta.MessageFrame:
		if message.Frame == nil {
			err := fmt.Errorf("frame message %d carries no frame", message.Sequence)
			m.replica.RequestResync(err.Error())
			return err
		}
		return m.replica.Apply(*message.Frame)

	case delta.MessageHeartbeat:
		if sequence := m.replica.Sequence(); sequence != message.Sequence {
			reason := fmt.Sprintf("server sent through %d, replica holds %d", message.Sequence, sequence)
			m.replica.RequestResync(reason)
			return errors.New(reason)
		}
		return nil

	default:
		m.config.Logger.Debug("ignoring unknown stream message", "kind", message.Kind)
		return nil
	}
}
