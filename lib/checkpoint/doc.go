// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package checkpoint writes and reads snapshots of the server's tree.
//
// A checkpoint records the tree as of one batch sequence number. On
// startup the server reads the checkpoint and replays journaled
// batches newer than it, so the journal only has to reach back to the
// last checkpoint.
//
// Writes are atomic: the file is written to a temporary sibling,
// fsynced, renamed into place, and the directory is fsynced. A reader
// sees the previous checkpoint or the new one, never a partial file.
// The tree is stored as deterministic CBOR, compressed with the
// configured algorithm.
package checkpoint
