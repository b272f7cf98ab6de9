// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/client"
	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/defs"
)

// pathAction is a command whose only arguments are node paths.
type pathAction struct {
	name    string
	summary string
	build   func(paths ...string) command.Command
}

var (
	pathSuspend = pathAction{"suspend", "Suspend nodes", func(p ...string) command.Command { return command.NewSuspend(p...) }}
	pathResume  = pathAction{"resume", "Resume suspended nodes", func(p ...string) command.Command { return command.NewResume(p...) }}
	pathRequeue = pathAction{"requeue", "Requeue nodes and everything below them", func(p ...string) command.Command { return command.NewRequeue(p...) }}
	pathDelete  = pathAction{"delete", "Delete nodes from the tree", func(p ...string) command.Command { return command.NewDelete(p...) }}
)

func pathsCommand(action pathAction) *cli.Command {
	return clientCommand(&cli.Command{
		Name:    action.name,
		Summary: action.summary,
		Usage:   fmt.Sprintf("flowctl %s <path>... [flags]", action.name),
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%s: at least one node path is required", action.name)
		}
		return c.Execute(ctx, action.build(args...), nil)
	})
}

func forceCommand() *cli.Command {
	var recursive bool
	return clientCommand(&cli.Command{
		Name:    "force",
		Summary: "Force nodes to a status",
		Usage:   "flowctl force <status> <path>... [flags]",
		Examples: []cli.Example{{
			Description: "Mark a family and everything in it complete",
			Command:     "flowctl force --recursive complete /ops/nightly",
		}},
	}, func(flagSet *pflag.FlagSet) {
		flagSet.BoolVarP(&recursive, "recursive", "r", false, "also force every node below")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) < 2 {
			return fmt.Errorf("force: a status and at least one node path are required")
		}
		status, err := defs.ParseStatus(args[0])
		if err != nil {
			return err
		}
		return c.Execute(ctx, command.NewForce(status, recursive, args[1:]...), nil)
	})
}

func abortCommand() *cli.Command {
	var reason string
	return clientCommand(&cli.Command{
		Name:    "abort",
		Summary: "Abort tasks",
		Usage:   "flowctl abort <path>... [flags]",
	}, func(flagSet *pflag.FlagSet) {
		flagSet.StringVar(&reason, "reason", "", "reason recorded on the task")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("abort: at least one task path is required")
		}
		return c.Execute(ctx, command.NewAbort(reason, args...), nil)
	})
}

func freeDepCommand() *cli.Command {
	var opts defs.FreeOptions
	return clientCommand(&cli.Command{
		Name:        "free-dep",
		Summary:     "Release nodes from their dependencies",
		Description: "Release nodes from their dependencies. With no selection flag the trigger is freed.",
		Usage:       "flowctl free-dep <path>... [flags]",
	}, func(flagSet *pflag.FlagSet) {
		flagSet.BoolVar(&opts.Trigger, "trigger", false, "free the trigger")
		flagSet.BoolVar(&opts.Complete, "complete", false, "free the complete expression")
		flagSet.BoolVar(&opts.Time, "time", false, "free time, day, date and cron dependencies")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("free-dep: at least one node path is required")
		}
		return c.Execute(ctx, command.NewFreeDep(opts, args...), nil)
	})
}

func orderCommand() *cli.Command {
	return clientCommand(&cli.Command{
		Name:        "order",
		Summary:     "Move a node among its siblings",
		Description: "Move a node among its siblings. <how> is top, bottom, alpha, order, up or down.",
		Usage:       "flowctl order <how> <path> [flags]",
	}, nil, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("order: want <how> <path>, got %d arguments", len(args))
		}
		how := defs.OrderKind(args[0])
		if !how.IsKnown() {
			return fmt.Errorf("order: unknown placement %q", args[0])
		}
		return c.Execute(ctx, command.NewOrder(how, args[1]), nil)
	})
}

func alterCommand() *cli.Command {
	var name, value string
	return clientCommand(&cli.Command{
		Name:    "alter",
		Summary: "Add, change or delete an attribute",
		Description: `Add, change or delete one attribute on nodes.

<op> is add, change or delete. <kind> is an attribute kind (variable,
label, event, meter, limit, trigger, complete, repeat, late, today,
time, day, date, cron, zombie), flag or defstatus. Meters are added
with --value min,max; events are changed with --value set or clear.`,
		Usage: "flowctl alter <op> <kind> <path>... [flags]",
		Examples: []cli.Example{
			{Description: "Set a meter", Command: "flowctl alter change meter --name progress --value 40 /ops/nightly/backup"},
			{Description: "Drop a trigger", Command: "flowctl alter delete trigger /ops/nightly/report"},
		},
	}, func(flagSet *pflag.FlagSet) {
		flagSet.StringVar(&name, "name", "", "attribute or flag name")
		flagSet.StringVar(&value, "value", "", "new value")
	}, func(ctx context.Context, c *client.Client, args []string) error {
		if len(args) < 3 {
			return fmt.Errorf("alter: want <op> <kind> <path>..., got %d arguments", len(args))
		}
		return c.Execute(ctx, command.NewAlter(command.AlterOp(args[0]), args[1], name, value, args[2:]...), nil)
	})
}
