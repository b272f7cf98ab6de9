// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes and so cannot live under a
// deeply nested t.TempDir().
//
// [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout pattern so tests never block forever on a
// subscriber channel or a server readiness signal. They are the only
// place tests use real wall-clock timeouts.
//
// All helpers call t.Fatalf on failure.
package testutil
