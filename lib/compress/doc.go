// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress wraps the two block compressors flowd uses behind a
// one-byte algorithm tag.
//
// LZ4 is used for Defs snapshots on the subscribe stream, where the
// server pays compression cost once per subscriber and decode speed on
// the replica matters most. Zstd is used for journal rows and
// checkpoints, which are written once and read rarely, so ratio wins.
//
// A [Blob] records the tag and the uncompressed size next to the
// bytes, so a reader never needs out-of-band knowledge of how
// something was stored. Data that does not shrink is stored with
// [None].
package compress
