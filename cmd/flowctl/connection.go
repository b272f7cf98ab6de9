// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/client"
	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/lib/config"
)

// connection holds the flags that locate the server.
type connection struct {
	socket     string
	configPath string
}

func (c *connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socket, "socket", "", "flowd socket path")
	flagSet.StringVar(&c.configPath, "config", "", "flowd.yaml to read the socket path from")
}

// socketPath resolves the socket from the flags, the environment and
// the configuration, falling back to the default location.
func (c *connection) socketPath() (string, error) {
	if c.socket != "" {
		return c.socket, nil
	}
	if socket := os.Getenv("FLOWD_SOCKET"); socket != "" {
		return socket, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv("FLOWD_CONFIG")
	}
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return "", err
		}
		return cfg.Paths.Socket, nil
	}
	return filepath.Join(config.Default().Paths.Root, "flowd.sock"), nil
}

func (c *connection) client() (*client.Client, error) {
	socket, err := c.socketPath()
	if err != nil {
		return nil, err
	}
	return client.New(socket), nil
}

// clientCommand builds a command that talks to the server. bind adds
// the command's own flags; run gets a connected client and a context
// bounded by --timeout and cancelled by SIGINT or SIGTERM.
func clientCommand(command *cli.Command, bind func(*pflag.FlagSet), run func(context.Context, *client.Client, []string) error) *cli.Command {
	var (
		conn    connection
		timeout time.Duration
	)
	command.Flags = func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(command.Name, pflag.ContinueOnError)
		conn.AddFlags(flagSet)
		flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
		if bind != nil {
			bind(flagSet)
		}
		return flagSet
	}
	command.Run = func(args []string) error {
		c, err := conn.client()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return run(ctx, c, args)
	}
	return command
}
