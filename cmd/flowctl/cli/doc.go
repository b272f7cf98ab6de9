// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree flowctl is built on. A [Command]
// owns its flags and either runs or dispatches to a subcommand named by
// its first argument. Unknown commands and flags are answered with the
// closest known name.
package cli
