// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides flowd's standard CBOR encoding configuration.
//
// Everything that crosses the server/replica boundary or lands on disk
// is CBOR: socket requests and responses, subscribe stream frames,
// memento batches, journal rows, and Defs checkpoints. Definition files
// written by people are JSONC and never go through this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces identical bytes, which is what
// lets a batch digest be computed once on the server and verified on
// every replica, and lets tests compare two trees by their encodings.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever CBOR (stream frames, journal
//     rows, socket envelopes).
//   - `json` tag: the type is also read from or written as JSON (node
//     definitions, CLI --json output). fxamacker/cbor falls back to
//     `json` tags when `cbor` tags are absent.
//
// Never put both tags on one field.
package codec
