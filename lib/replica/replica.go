// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/memento"
	"github.com/flowd-project/flowd/lib/notify"
)

// Replica is a copy of the server's tree kept current by batch frames.
// Apply and Reset must be called from one goroutine; View and Snapshot
// may be called concurrently with them.
type Replica struct {
	bus    *notify.Bus
	logger *slog.Logger
	resync chan struct{}

	mu             sync.RWMutex
	defs           *defs.Defs
	sequence       uint64
	resyncRequired bool
}

// New returns a replica with an empty tree that requires a Reset
// before it accepts frames. bus may be nil when nothing observes the
// replica.
func New(bus *notify.Bus, logger *slog.Logger) *Replica {
	return &Replica{
		bus:            bus,
		logger:         logger,
		resync:         make(chan struct{}, 1),
		defs:           defs.New(),
		resyncRequired: true,
	}
}

// Reset replaces the tree with snapshot, taken at sequence, and clears
// any pending resync. The replica takes ownership of snapshot.
func (r *Replica) Reset(snapshot *defs.Defs, sequence uint64) {
	snapshot.Link()
	r.mu.Lock()
	r.defs = snapshot
	r.sequence = sequence
	r.resyncRequired = false
	r.mu.Unlock()

	// A signal raised before this reset is already satisfied.
	select {
	case <-r.resync:
	default:
	}
	r.logger.Debug("replica reset", "sequence", sequence, "suites", len(snapshot.Suites))
}

// Apply verifies, decodes and applies one frame. On any error the
// replica requires a full resync.
func (r *Replica) Apply(frame delta.Frame) error {
	batch, err := delta.DecodeFrame(frame)
	if err != nil {
		return r.fail(&SyncError{Code: DecodeFailure, Sequence: frame.Sequence, Err: err})
	}
	return r.ApplyBatch(batch)
}

// ApplyBatch applies an already decoded batch.
func (r *Replica) ApplyBatch(batch delta.Batch) error {
	r.mu.Lock()
	if r.resyncRequired {
		r.mu.Unlock()
		return ErrResyncRequired
	}
	if batch.Sequence != r.sequence+1 {
		expected := r.sequence + 1
		r.mu.Unlock()
		return r.fail(&SyncError{
			Code:     BatchOutOfOrder,
			Sequence: batch.Sequence,
			Err:      fmt.Errorf("expected sequence %d", expected),
		})
	}

	tree := r.defs
	changes := make([]notify.Change, 0, len(batch.Compounds))
	var applyErr error
	for _, compound := range batch.Compounds {
		node, err := compound.Apply(tree)
		if err != nil {
			applyErr = err
			if errors.Is(err, memento.ErrPathNotFound) {
				applyErr = &SyncError{Code: PathNotFound, Sequence: batch.Sequence, Path: compound.Path, Err: err}
			}
			break
		}
		changes = append(changes, notify.Change{
			Path:     compound.Path,
			Node:     node,
			Defs:     tree,
			Aspects:  compound.Aspects(),
			Sequence: batch.Sequence,
		})
	}
	if applyErr == nil {
		r.sequence = batch.Sequence
	} else {
		// The batch is not committed and the next Reset replaces the tree.
		changes = nil
	}
	r.mu.Unlock()

	// Observers run outside the lock so they may call View. Apply is
	// single-threaded, so the tree cannot change underneath them.
	if r.bus != nil {
		for _, c := range changes {
			r.bus.Notify(c)
		}
	}
	if applyErr != nil {
		return r.fail(applyErr)
	}
	return nil
}

// fail marks the replica for resync and signals the driver.
func (r *Replica) fail(err error) error {
	r.mu.Lock()
	r.resyncRequired = true
	r.mu.Unlock()

	select {
	case r.resync <- struct{}{}:
	default:
	}
	r.logger.Warn("replica out of sync, full resync required", "error", err)
	return err
}

// RequestResync marks the replica for resync, as when the server
// reports that frames were dropped.
func (r *Replica) RequestResync(reason string) {
	r.fail(errors.New(reason))
}

// ResyncRequired reports whether the replica is waiting for a Reset.
func (r *Replica) ResyncRequired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resyncRequired
}

// Resync returns a channel that receives when the replica starts
// requiring a resync.
func (r *Replica) Resync() <-chan struct{} {
	return r.resync
}

// Sequence returns the number of the last applied batch.
func (r *Replica) Sequence() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sequence
}

// View calls fn with the tree under the read lock. fn must not retain
// the tree or mutate it.
func (r *Replica) View(fn func(*defs.Defs)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.defs)
}

// Snapshot returns a deep copy of the tree and the sequence it
// reflects.
func (r *Replica) Snapshot() (*defs.Defs, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs.Clone(), r.sequence
}
