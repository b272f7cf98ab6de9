// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "context"

// Peer identifies the process on the other end of a connection.
type Peer struct {
	UID  uint32
	GID  uint32
	PID  int32
	User string

	// Known is false when the credentials could not be read.
	Known bool
}

type peerKey struct{}

// WithPeer returns a context carrying peer.
func WithPeer(ctx context.Context, peer Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFrom returns the peer stored by WithPeer. The zero Peer, with
// Known false, is returned when there is none.
func PeerFrom(ctx context.Context) Peer {
	peer, _ := ctx.Value(peerKey{}).(Peer)
	return peer
}
