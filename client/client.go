// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/service"
)

// Client sends commands to one server.
type Client struct {
	service *service.ServiceClient
}

// New returns a client for the server listening on socketPath.
func New(socketPath string) *Client {
	return &Client{service: service.NewServiceClient(socketPath)}
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string { return c.service.SocketPath() }

// Execute sends cmd and decodes the reply into result, which may be
// nil. The server identifies the caller from the socket; cmd's user is
// not sent.
func (c *Client) Execute(ctx context.Context, cmd command.Command, result any) error {
	fields, err := command.Fields(cmd)
	if err != nil {
		return err
	}
	return c.service.Call(ctx, cmd.Name(), fields, result)
}

// Ping checks that the server is up.
func (c *Client) Ping(ctx context.Context) (command.PingResult, error) {
	var result command.PingResult
	err := c.service.Call(ctx, command.ActionPing, nil, &result)
	return result, err
}

// Get fetches copies of the nodes at paths, or the whole tree when no
// path is given.
func (c *Client) Get(ctx context.Context, paths ...string) (*command.GetResult, error) {
	var result command.GetResult
	if err := c.Execute(ctx, command.NewGet(paths...), &result); err != nil {
		return nil, err
	}
	if result.Defs != nil {
		result.Defs.Link()
	}
	return &result, nil
}

// Whitelist returns the server's access list as text.
func (c *Client) Whitelist(ctx context.Context) (string, error) {
	var dump string
	err := c.Execute(ctx, command.NewWhitelist(), &dump)
	return dump, err
}
