// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package service

import (
	"errors"
	"net"
)

func peerCredentials(net.Conn) (Peer, error) {
	return Peer{}, errors.New("peer credentials are only supported on linux")
}
