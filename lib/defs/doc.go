// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package defs is the node model: a [Defs] root holding an ordered
// list of suites, each a tree of families, tasks and aliases.
//
// The exported fields of [Node] and [Defs] are the serializable state
// of the tree. They are encoded with lib/codec for the sync protocol,
// checkpoints and snapshots, and decoded from JSONC by
// [ParseDefinitions]. Parent links are unexported and rebuilt by
// [Defs.Link] after decoding; a node's absolute path is always computed
// from its parents, never stored.
//
// Server-side mutation goes through the methods in mutate.go, each of
// which takes a [Tracker]. The tracker is told which node and which
// aspect is about to change before the change is made, which lets the
// change recorder capture the node's prior state on first touch. A nil
// Tracker records nothing. Replica-side memento application assigns the
// exported fields directly and calls [Node.ReplaceChildren] or
// [Defs.ReplaceSuites] for structural changes; it never records.
//
// Nothing in this package is safe for concurrent use. The server
// serializes access under its own lock.
package defs
