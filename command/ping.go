// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

// ActionPing is answered by the server without authorization, for
// liveness checks. It carries no fields and is not a Command.
const ActionPing = "ping"

// PingResult is the reply to ping.
type PingResult struct {
	Version  string `cbor:"version"`
	Sequence uint64 `cbor:"sequence"`
}
