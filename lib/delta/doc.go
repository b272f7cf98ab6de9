// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package delta packages the compound mementos produced by one command
// into a numbered batch and distributes it to replicas.
//
// A [Batch] is the unit of incremental sync: every compound built for
// a single command, tagged with a strictly increasing sequence number
// and a ULID. On the wire a batch travels as a [Frame] whose payload is
// the deterministic CBOR encoding of the compounds and whose digest is
// a keyed BLAKE3 hash over the rest of the frame. A replica that cannot
// verify or decode a frame rejects the whole batch before touching its
// tree.
//
// [Publisher] assigns sequence numbers, hands each frame to an optional
// [Journal] and fans it out to subscribers. Sends to subscribers never
// block the publishing command: a subscriber whose buffer is full is
// marked for resync and must be sent a fresh snapshot.
package delta
