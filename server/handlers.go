// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/service"
	"github.com/flowd-project/flowd/lib/version"
)

// Register installs the server's actions on socket.
func (s *Server) Register(socket *service.SocketServer) {
	socket.Handle(command.ActionPing, func(context.Context, []byte) (any, error) {
		return command.PingResult{Version: version.Info(), Sequence: s.Sequence()}, nil
	})
	for _, action := range command.Actions() {
		if action == command.ActionSubscribe {
			continue
		}
		socket.Handle(action, s.handleCommand)
	}
	socket.HandleStream(command.ActionSubscribe, s.handleSubscribe)
}

// handleCommand decodes a request, attributes it to the socket peer
// and executes it.
func (s *Server) handleCommand(ctx context.Context, raw []byte) (any, error) {
	cmd, err := command.Decode(raw, service.PeerFrom(ctx).User)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, cmd)
}
