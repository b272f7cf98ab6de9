// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists published batch frames in SQLite.
//
// The journal serves two readers. After a crash the server loads its
// last checkpoint and replays every journaled batch newer than it. A
// replica reconnecting with a known sequence number catches up from
// the journal instead of taking a full snapshot, provided the journal
// still holds every batch it missed.
//
// Frames are stored zstd-compressed, one row per batch, keyed by
// sequence number. [Journal.Trim] bounds the table; a reader asking
// for batches older than the oldest retained row gets [ErrTrimmed].
package journal
