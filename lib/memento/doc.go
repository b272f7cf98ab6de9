// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package memento carries changes from the authoritative Defs to its
// replicas.
//
// A [Memento] captures the old and new value of one aspect of one
// entity. The set of variants is closed: every aspect has exactly one
// memento kind, and [Apply] dispatches on them with a single type
// switch. A [Compound] groups the mementos produced for one node path
// by one command, plus a ClearAttributes flag telling the receiver to
// wipe the node's attributes before applying (used whenever an
// attribute was added or removed, in which case every attribute is
// re-sent).
//
// [Build] runs on the server after a command, turning a drained
// change.Recorder into compounds in first-touch order. Structural
// changes ship as [Children] (or [Suites] at the root): the new child
// order plus full copies of the subtrees added by the command.
// Changes recorded on nodes inside an added subtree, or on nodes
// detached by the command, are not sent separately.
//
// [Compound.Apply] runs on a replica. It resolves the path, clears
// attributes when flagged, and applies each memento in order. Mementos
// that do not apply to the target's kind are ignored. A path that does
// not resolve is [ErrPathNotFound]: the replica is out of sync.
//
// Compounds encode to CBOR as {path, clear_attributes, mementos},
// each memento an envelope {kind, body}. An unknown kind fails the
// decode.
package memento
