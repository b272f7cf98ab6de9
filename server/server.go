// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/accesslist"
	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/change"
	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/journal"
	"github.com/flowd-project/flowd/lib/memento"
	"github.com/flowd-project/flowd/lib/notify"
)

// Config configures a Server.
type Config struct {
	// Defs is the initial tree, usually from Recover. Nil starts
	// empty.
	Defs *defs.Defs

	// Sequence is the number of the last batch reflected in Defs.
	Sequence uint64

	// Access answers authorization questions. Required.
	Access *accesslist.Store

	// Journal persists batches and serves catch-up. Nil disables both.
	Journal *journal.Journal

	Clock  clock.Clock
	Logger *slog.Logger

	// SubscriberBuffer is the frame buffer of each subscriber. Zero
	// uses delta.SubscriberBufferSize.
	SubscriberBuffer int

	// HeartbeatInterval spaces heartbeats on idle streams. Zero
	// disables them.
	HeartbeatInterval time.Duration

	// SnapshotCompression packs snapshot messages.
	SnapshotCompression compress.Tag
}

// Server owns the authoritative tree.
type Server struct {
	access    *accesslist.Store
	journal   *journal.Journal
	publisher *delta.Publisher
	bus       notify.Bus
	clock     clock.Clock
	logger    *slog.Logger

	heartbeat   time.Duration
	snapshotTag compress.Tag

	mu   sync.RWMutex
	defs *defs.Defs
}

var (
	_ authgate.Server = (*Server)(nil)
	_ command.Control = (*Server)(nil)
)

// New returns a server holding cfg.Defs at cfg.Sequence.
func New(cfg Config) *Server {
	if cfg.Defs == nil {
		cfg.Defs = defs.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	cfg.Defs.Link()

	var j delta.Journal
	if cfg.Journal != nil {
		j = cfg.Journal
	}
	publisher := delta.NewPublisher(cfg.Sequence, j, cfg.Clock, cfg.Logger)
	publisher.SetSubscriberBuffer(cfg.SubscriberBuffer)

	return &Server{
		access:      cfg.Access,
		journal:     cfg.Journal,
		publisher:   publisher,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		heartbeat:   cfg.HeartbeatInterval,
		snapshotTag: cfg.SnapshotCompression,
		defs:        cfg.Defs,
	}
}

// Bus returns the server-side change bus. Observers run under the
// server's write lock and must not call back into the server.
func (s *Server) Bus() *notify.Bus { return &s.bus }

// Sequence returns the number of the last published batch.
func (s *Server) Sequence() uint64 { return s.publisher.Sequence() }

// Snapshot returns a deep copy of the named suites, or of the whole
// tree for nil, with the sequence it reflects.
func (s *Server) Snapshot(suites []string) (*defs.Defs, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defs.CloneSuites(suites), s.publisher.Sequence()
}

// AuthenticateReadAccess implements authgate.Server.
func (s *Server) AuthenticateReadAccess(user string, paths ...string) bool {
	return s.access.Policy().VerifyReadAccessPaths(user, paths)
}

// AuthenticateWriteAccess implements authgate.Server.
func (s *Server) AuthenticateWriteAccess(user string, paths ...string) bool {
	return s.access.Policy().VerifyWriteAccessPaths(user, paths)
}

// ReloadAccessList implements command.Control.
func (s *Server) ReloadAccessList() error { return s.access.Reload() }

// DumpAccessList implements command.Control.
func (s *Server) DumpAccessList() string { return s.access.Policy().Dump() }

// Execute authorizes cmd and runs it. Queries return their result;
// mutations return nil.
func (s *Server) Execute(ctx context.Context, cmd command.Command) (any, error) {
	if err := authgate.Authenticate(cmd, s); err != nil {
		s.logger.Info("command refused",
			"command", cmd.Name(),
			"user", cmd.User(),
			"paths", cmd.Paths(),
			"error", err,
		)
		return nil, err
	}

	switch c := cmd.(type) {
	case command.Query:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return c.Query(s.defs)
	case command.Admin:
		return c.Run(s)
	case command.Mutation:
		return nil, s.mutate(ctx, c)
	default:
		return nil, fmt.Errorf("%s cannot be executed", cmd.Name())
	}
}

// Apply runs a mutation without authorization. It is for commands the
// server issues itself, such as the initial definitions load.
func (s *Server) Apply(ctx context.Context, cmd command.Mutation) error {
	return s.mutate(ctx, cmd)
}

func (s *Server) mutate(ctx context.Context, cmd command.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recorder := change.New()
	if err := cmd.Apply(s.defs, recorder); err != nil {
		recorder.Rollback(s.defs)
		return err
	}
	compounds := memento.Build(s.defs, recorder)
	frame, err := s.publisher.Publish(ctx, cmd.Name(), cmd.User(), compounds)
	if err != nil {
		// An unpublished change would be invisible to replicas and lost
		// on restart.
		recorder.Rollback(s.defs)
		s.logger.Error("publishing batch failed, command rolled back",
			"command", cmd.Name(), "user", cmd.User(), "error", err)
		return errors.Join(errors.New("command rolled back"), err)
	}
	if frame == nil {
		return nil
	}

	s.logger.Debug("batch published",
		"command", cmd.Name(),
		"user", cmd.User(),
		"sequence", frame.Sequence,
		"compounds", len(compounds),
	)
	for _, compound := range compounds {
		changed := notify.Change{
			Path:     compound.Path,
			Defs:     s.defs,
			Aspects:  compound.Aspects(),
			Sequence: frame.Sequence,
		}
		if !compound.IsRoot() {
			changed.Node = s.defs.Find(compound.Path)
		}
		s.bus.Notify(changed)
	}
	return nil
}
