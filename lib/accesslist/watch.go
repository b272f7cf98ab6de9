// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/flowd-project/flowd/lib/clock"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading. Editors often write a file in several steps.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a Store when its file changes on disk.
type Watcher struct {
	store    *Store
	clock    clock.Clock
	logger   *slog.Logger
	debounce time.Duration

	// OnReload, if set, is called after every reload attempt with its
	// result.
	OnReload func(error)
}

// NewWatcher returns a Watcher for store.
func NewWatcher(store *Store, clk clock.Clock, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{store: store, clock: clk, logger: logger, debounce: DefaultDebounce}
}

// SetDebounce changes the quiet period before a reload.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run watches the directory containing the access list, so that
// replacement by rename is seen, and reloads after writes, creates and
// renames of the file. It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	path := w.store.Path()
	if path == "" {
		return errors.New("access list watcher: store has no file")
	}
	target := filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating access list watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	w.logger.Info("watching access list", "path", target)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("access list changed", "path", target, "op", event.Op.String())
			settle = w.clock.After(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("access list watcher error", "error", err)
		case <-settle:
			settle = nil
			err := w.store.Reload()
			if w.OnReload != nil {
				w.OnReload(err)
			}
		}
	}
}
