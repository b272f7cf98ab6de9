// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build and protocol version information.
//
// Build information is injected with -ldflags:
//
//	go build -ldflags "-X github.com/flowd-project/flowd/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// ProtocolVersion is compiled in. It versions the subscribe stream and
// the memento wire encoding: a replica refuses frames from a server
// with a different protocol version and requests a full resync only
// after reconnecting to a compatible one.
package version
