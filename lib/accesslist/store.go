// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// Store holds the current policy. Readers never block; a reload
// replaces the policy in one atomic step, and a failed reload leaves
// the previous policy in force.
type Store struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Policy]
}

// NewStore loads the access list at path. An empty path yields a store
// holding an empty policy, which lets everyone read and write.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{path: path, logger: logger}
	if path == "" {
		empty, _ := Parse(strings.NewReader(""), "")
		s.current.Store(empty)
		return s, nil
	}
	policy, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(policy)
	return s, nil
}

// NewStoreWith returns a store holding policy, with no backing file.
func NewStoreWith(policy *Policy) *Store {
	s := &Store{path: policy.File(), logger: slog.New(slog.DiscardHandler)}
	s.current.Store(policy)
	return s
}

// Path returns the access list file, or "" when there is none.
func (s *Store) Path() string { return s.path }

// Policy returns the policy currently in force.
func (s *Store) Policy() *Policy { return s.current.Load() }

// Reload re-reads the access list. On failure the previous policy
// stays in force and the error is returned.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	policy, err := Load(s.path)
	if err != nil {
		s.logger.Warn("access list reload failed, keeping previous policy",
			"path", s.path, "error", err)
		return err
	}
	s.current.Store(policy)
	s.logger.Info("access list reloaded", "path", s.path, "empty", policy.Empty())
	return nil
}
