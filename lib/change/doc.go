// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package change records what a command changed.
//
// A [Recorder] is created per command execution and passed to the
// mutation methods of lib/defs as their [defs.Tracker]. It accumulates
// the set of aspects touched, and for each node the aspects touched on
// that node and a capture of the node's state taken before the first
// change. lib/memento turns a drained Recorder into compound mementos;
// the server uses the captures to roll a failed command back.
//
// Nested command execution accumulates into the same session: a
// composite command calls [Recorder.Nest] around each sub-command, and
// [Recorder.Clear] inside a nest does nothing. [Recorder.Scoped]
// returns an independent recorder when a sub-command's changes must be
// kept apart.
//
// A Recorder is not safe for concurrent use; it lives inside the
// server's write lock.
package change
