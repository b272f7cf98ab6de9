// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package replica maintains a client-side copy of the server's tree by
// applying batch frames in sequence order.
//
// A [Replica] starts from a snapshot ([Replica.Reset]) and then accepts
// frames one at a time ([Replica.Apply]). Each frame is verified and
// fully decoded before the tree is touched, so a corrupt frame leaves
// the replica exactly as it was. Any [SyncError] marks the replica as
// requiring a full resync: further frames are refused until the next
// Reset, and the [Replica.Resync] channel fires so the driver can fetch
// a fresh snapshot. Errors are never retried in place.
//
// Every applied compound produces one notification on the replica's
// [notify.Bus], carrying the union of the compound's aspects.
package replica
