// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package client talks to flowd over its Unix socket.
//
// [Client] sends one-shot commands. [Mirror] keeps a replica.Replica in
// step with the server: it subscribes, resets the replica from the
// first snapshot, applies every frame, and re-subscribes whenever the
// stream drops or the replica reports that it has lost sync. A
// re-subscription names the last sequence the replica holds, so a
// short disconnect is repaired from the server's journal instead of a
// full snapshot.
package client
