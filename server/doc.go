// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the authoritative side of flowd: it owns the tree,
// authorizes and executes commands, and feeds replicas.
//
// Every mutation runs under the server's write lock in four steps. The
// command is applied with a fresh change recorder as its tracker; on
// failure the recorder rolls the tree back. The recorder is then turned
// into compound mementos, the compounds are published as one numbered
// batch (journaled before fan-out), and server-side observers are
// notified. The lock is released only after all four, so batch order
// is mutation order.
//
// Replicas attach through the "subscribe" stream action. A subscriber
// that names the last sequence it holds is caught up from the journal
// when the journal still has every batch after it; otherwise it is sent
// a snapshot. A subscriber that falls behind is sent a fresh snapshot
// in-stream rather than being disconnected.
//
// Durability comes from two pieces. The journal holds recent batches;
// checkpoints hold the whole tree at a sequence number. [Recover]
// rebuilds the tree at startup by loading the checkpoint and replaying
// later batches through a replica, the same code path remote replicas
// use.
package server
