// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/lib/version"
)

func root() *cli.Command {
	return &cli.Command{
		Name: "flowctl",
		Description: `Control a flowd server.

Commands run as the calling user; the server checks them against its
access list. The socket is taken from --socket, $FLOWD_SOCKET, the
configuration named by --config or $FLOWD_CONFIG, in that order.`,
		Subcommands: []*cli.Command{
			pingCommand(),
			getCommand(),
			watchCommand(),
			pathsCommand(pathSuspend),
			pathsCommand(pathResume),
			pathsCommand(pathRequeue),
			pathsCommand(pathDelete),
			forceCommand(),
			abortCommand(),
			freeDepCommand(),
			orderCommand(),
			alterCommand(),
			loadCommand(),
			serverStateCommand(),
			serverVariableCommand(),
			whitelistCommand(),
			reloadWhitelistCommand(),
			diagCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func([]string) error {
					version.Print("flowctl")
					return nil
				},
			},
		},
	}
}
