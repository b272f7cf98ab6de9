// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/client"
	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/accesslist"
	"github.com/flowd-project/flowd/lib/defs"
)

func pingCommand() *cli.Command {
	return clientCommand(&cli.Command{
		Name:    "ping",
		Summary: "Check that the server is up",
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		result, err := c.Ping(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "flowd at %s is not answering: %v\n", c.SocketPath(), err)
			return &cli.ExitError{Code: 2}
		}
		fmt.Printf("flowd %s at sequence %d\n", result.Version, result.Sequence)
		return nil
	})
}

func getCommand() *cli.Command {
	var asJSON bool
	return clientCommand(&cli.Command{
		Name:        "get",
		Summary:     "Print the tree or selected nodes",
		Description: "Print the whole tree, or the nodes at the given paths and everything below them.",
		Usage:       "flowctl get [<path>...] [flags]",
	}, func(flagSet *pflag.FlagSet) {
		flagSet.BoolVar(&asJSON, "json", false, "print JSON in the definitions format")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		result, err := c.Get(ctx, args...)
		if err != nil {
			return err
		}
		if asJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if result.Defs != nil {
				return encoder.Encode(result.Defs)
			}
			return encoder.Encode(result.Nodes)
		}
		th := newTheme(stdoutStyled())
		if result.Defs != nil {
			writeTree(os.Stdout, th, result.Defs)
			return nil
		}
		for _, node := range result.Nodes {
			writeNode(os.Stdout, th, node, 0)
		}
		return nil
	})
}

func loadCommand() *cli.Command {
	var force bool
	return clientCommand(&cli.Command{
		Name:        "load",
		Summary:     "Load suites from a definitions file",
		Description: "Load the suites in a JSONC definitions file. Existing suites are replaced only with --force.",
		Usage:       "flowctl load <file> [flags]",
	}, func(flagSet *pflag.FlagSet) {
		flagSet.BoolVar(&force, "force", false, "replace suites that already exist")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("load: exactly one definitions file is required")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return c.Execute(ctx, command.NewLoad(data, force), nil)
	})
}

func serverStateCommand() *cli.Command {
	return clientCommand(&cli.Command{
		Name:    "server-state",
		Summary: "Set the server state",
		Usage:   "flowctl server-state halted|shutdown|running [flags]",
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("server-state: exactly one state is required")
		}
		state, err := defs.ParseServerState(args[0])
		if err != nil {
			return err
		}
		return c.Execute(ctx, command.NewServerState(state), nil)
	})
}

func serverVariableCommand() *cli.Command {
	return &cli.Command{
		Name:    "server-variable",
		Summary: "Set or delete server variables",
		Subcommands: []*cli.Command{
			clientCommand(&cli.Command{
				Name:    "set",
				Summary: "Set a server variable",
				Usage:   "flowctl server-variable set <name> <value> [flags]",
			}, nil, func(ctx context.Context, c *client.Client, args []string) error {
				if len(args) != 2 {
					return fmt.Errorf("server-variable set: want <name> <value>")
				}
				return c.Execute(ctx, command.NewServerVariable(args[0], args[1]), nil)
			}),
			clientCommand(&cli.Command{
				Name:    "delete",
				Summary: "Delete a server variable",
				Usage:   "flowctl server-variable delete <name> [flags]",
			}, nil, func(ctx context.Context, c *client.Client, args []string) error {
				if len(args) != 1 {
					return fmt.Errorf("server-variable delete: want <name>")
				}
				return c.Execute(ctx, command.NewDeleteServerVariable(args[0]), nil)
			}),
		},
	}
}

func whitelistCommand() *cli.Command {
	return clientCommand(&cli.Command{
		Name:        "whitelist",
		Summary:     "Print the access list in force",
		Description: "Print the access list in force, or create a new access list file with 'init'.",
		Subcommands: []*cli.Command{whitelistInitCommand()},
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		dump, err := c.Whitelist(ctx)
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	})
}

func whitelistInitCommand() *cli.Command {
	var readOnly bool
	return &cli.Command{
		Name:        "init",
		Summary:     "Write an access list for the current user",
		Description: "Write an access list that grants the current user access to everything.",
		Usage:       "flowctl whitelist init <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			flagSet.BoolVar(&readOnly, "read-only", false, "grant read access only")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("whitelist init: exactly one file is required")
			}
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("whitelist init: %s already exists", args[0])
			}
			if readOnly {
				return accesslist.CreateWithReadAccess(args[0])
			}
			return accesslist.CreateWithWriteAccess(args[0])
		},
	}
}

func reloadWhitelistCommand() *cli.Command {
	return clientCommand(&cli.Command{
		Name:        "reload-whitelist",
		Summary:     "Re-read the access list file",
		Description: "Re-read the access list file. On a parse error the server keeps the previous list and reports the error.",
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		var dump string
		if err := c.Execute(ctx, command.NewReloadWhitelist(), &dump); err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	})
}
