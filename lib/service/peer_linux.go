// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
func peerCredentials(conn net.Conn) (Peer, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}, fmt.Errorf("peer credentials need a unix socket, have %T", conn)
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return Peer{}, err
	}

	var (
		credentials *unix.Ucred
		sockoptErr  error
	)
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Peer{}, err
	}
	if sockoptErr != nil {
		return Peer{}, fmt.Errorf("SO_PEERCRED: %w", sockoptErr)
	}
	return Peer{
		UID:   credentials.Uid,
		GID:   credentials.Gid,
		PID:   credentials.Pid,
		Known: true,
	}, nil
}
