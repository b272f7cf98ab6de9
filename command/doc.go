// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package command defines the requests flowctl sends to flowd.
//
// Every command is a CBOR map whose "action" field selects the
// concrete type. [Decode] turns a raw request into a [Command] and
// stamps it with the user the server identified from the socket peer;
// the user is never read from the request itself.
//
// Commands come in three shapes. A [Mutation] changes the tree and
// reports every change to a tracker. A [Query] reads the tree. An
// [Admin] command acts on the server itself (the access list) rather
// than the tree. All three satisfy authgate.Command, so the server
// authorizes every one of them the same way before running it.
//
// Node paths in requests must be canonical absolute paths: no empty,
// "." or ".." segments. Access checks compare path prefixes, so a
// non-canonical path could name a node outside the prefix it appears
// to be under.
package command
