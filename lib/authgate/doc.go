// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package authgate decides whether a command may run.
//
// [Authenticate] checks a [Command]'s acting user against a [Server]
// that answers read and write access questions. The user must be
// non-empty and have read access to every path the command targets;
// write commands additionally need write access. Failures are
// returned as *[Error] values that match the sentinels [ErrEmptyUser],
// [ErrNoAccess] and [ErrNoWriteAccess] under errors.Is.
//
// Authentication never performs I/O: the server answers from the
// policy it already holds. Identities are resolved from the OS once
// and cached, with [CurrentUser] on the client and [LookupUID] for
// peer credentials on the server.
package authgate
