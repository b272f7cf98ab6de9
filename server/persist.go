// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowd-project/flowd/lib/checkpoint"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/journal"
	"github.com/flowd-project/flowd/lib/replica"
)

// Recovered is the state Recover rebuilt.
type Recovered struct {
	Defs     *defs.Defs
	Sequence uint64

	// Checkpoint is the sequence of the checkpoint recovery started
	// from, zero when there was none.
	Checkpoint uint64

	// Replayed counts the journaled batches applied on top.
	Replayed int
}

// Recover rebuilds the tree from the checkpoint at checkpointPath and
// the batches journaled after it. Either may be absent: an empty
// checkpointPath or missing file starts from an empty tree, and a nil
// journal replays nothing. A journal trimmed past the checkpoint is an
// error, since the batches in between are gone.
func Recover(ctx context.Context, checkpointPath string, j *journal.Journal, logger *slog.Logger) (Recovered, error) {
	base := defs.New()
	var sequence uint64
	if checkpointPath != "" {
		cp, found, err := checkpoint.Load(checkpointPath)
		if err != nil {
			return Recovered{}, err
		}
		if found {
			base, sequence = cp.Defs, cp.Sequence
			logger.Info("checkpoint loaded",
				"path", checkpointPath,
				"sequence", sequence,
				"taken", cp.Taken,
				"suites", len(base.Suites),
			)
		}
	}
	recovered := Recovered{Defs: base, Sequence: sequence, Checkpoint: sequence}
	if j == nil {
		return recovered, nil
	}

	frames, err := j.Since(ctx, sequence)
	if err != nil {
		if errors.Is(err, journal.ErrTrimmed) {
			return Recovered{}, fmt.Errorf("journal does not reach back to checkpoint %d: %w", sequence, err)
		}
		return Recovered{}, err
	}
	if len(frames) == 0 {
		return recovered, nil
	}

	// Replay uses the replica's apply path, so a batch the server
	// journaled is applied exactly as a remote replica would apply it.
	mirror := replica.New(nil, logger)
	mirror.Reset(base, sequence)
	for _, frame := range frames {
		if err := mirror.Apply(frame); err != nil {
			return Recovered{}, fmt.Errorf("replaying batch %d: %w", frame.Sequence, err)
		}
	}
	recovered.Defs, recovered.Sequence = mirror.Snapshot()
	recovered.Replayed = len(frames)
	logger.Info("journal replayed", "from", sequence, "to", recovered.Sequence, "batches", len(frames))
	return recovered, nil
}

// Checkpoint writes the current tree to path and returns the sequence
// it reflects.
func (s *Server) Checkpoint(path string, tag compress.Tag) (uint64, error) {
	snapshot, sequence := s.Snapshot(nil)
	err := checkpoint.Write(path, checkpoint.Checkpoint{
		Sequence: sequence,
		Taken:    s.clock.Now(),
		Defs:     snapshot,
	}, tag)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("checkpoint written", "path", path, "sequence", sequence)
	return sequence, nil
}

// TrimJournal deletes journaled batches, keeping at least retention of
// them and every batch after through, the newest checkpoint.
func (s *Server) TrimJournal(ctx context.Context, through uint64, retention int) (int, error) {
	if s.journal == nil {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	latest := s.publisher.Sequence()
	keep := retention
	if latest > through {
		keep = max(keep, int(latest-through))
	}
	return s.journal.Trim(ctx, keep)
}

// CheckpointConfig configures RunCheckpoints.
type CheckpointConfig struct {
	Path        string
	Interval    time.Duration
	Retention   int
	Compression compress.Tag
}

// RunCheckpoints writes a checkpoint every interval while batches are
// being published, trims the journal behind it, and writes a final
// checkpoint when ctx is cancelled. A zero interval writes only the
// final checkpoint.
func (s *Server) RunCheckpoints(ctx context.Context, cfg CheckpointConfig) error {
	written := s.Sequence()
	take := func(ctx context.Context) error {
		if s.Sequence() == written {
			return nil
		}
		sequence, err := s.Checkpoint(cfg.Path, cfg.Compression)
		if err != nil {
			return err
		}
		written = sequence
		if _, err := s.TrimJournal(ctx, sequence, cfg.Retention); err != nil {
			return err
		}
		return nil
	}

	if cfg.Interval <= 0 {
		<-ctx.Done()
		return take(context.WithoutCancel(ctx))
	}
	ticker := s.clock.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The final checkpoint must not be cut short by the
			// cancellation that triggered it.
			return take(context.WithoutCancel(ctx))
		case <-ticker.C:
			if err := take(ctx); err != nil {
				s.logger.Error("checkpoint failed", "path", cfg.Path, "error", err)
			}
		}
	}
}
