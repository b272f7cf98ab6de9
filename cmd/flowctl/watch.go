// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/client"
	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/notify"
	"github.com/flowd-project/flowd/lib/replica"
)

func watchCommand() *cli.Command {
	var (
		conn             connection
		suites           []string
		heartbeatTimeout time.Duration
		verbose          bool
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow changes to the tree as they happen",
		Description: `Mirror the tree and print one line per changed node.

The mirror reconnects after a lost connection and resynchronizes from
a fresh snapshot whenever it falls out of step with the server.`,
		Usage: "flowctl watch [flags]",
		Examples: []cli.Example{
			{Description: "Follow two suites", Command: "flowctl watch --suite ops --suite research"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			conn.AddFlags(flagSet)
			flagSet.StringSliceVar(&suites, "suite", nil, "mirror only these suites (repeatable)")
			flagSet.DurationVar(&heartbeatTimeout, "heartbeat-timeout", 2*time.Minute, "reconnect after this long without a message")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "log connection events")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("watch: unexpected argument %q", args[0])
			}
			c, err := conn.client()
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, c, watchConfig{
				suites:           suites,
				heartbeatTimeout: heartbeatTimeout,
				out:              os.Stdout,
				theme:            newTheme(stdoutStyled()),
				logger:           cli.NewLogger(level),
			})
		},
	}
}

type watchConfig struct {
	suites           []string
	heartbeatTimeout time.Duration
	out              io.Writer
	theme            theme
	logger           *slog.Logger
}

// watch mirrors the tree until ctx is cancelled, writing a line to
// cfg.out for every change.
func watch(ctx context.Context, c *client.Client, cfg watchConfig) error {
	var bus notify.Bus
	bus.Register(notify.ObserverFunc(func(change notify.Change) {
		fmt.Fprintln(cfg.out, describeChange(cfg.theme, change))
	}))
	r := replica.New(&bus, cfg.logger)
	mirror := c.Mirror(r, client.MirrorConfig{
		Suites:           cfg.suites,
		HeartbeatTimeout: cfg.heartbeatTimeout,
		Logger:           cfg.logger,
	})

	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx) }()

	select {
	case <-mirror.Ready():
		var suites int
		r.View(func(tree *defs.Defs) { suites = len(tree.Suites) })
		cfg.logger.Info("mirror ready", "suites", suites, "sequence", r.Sequence())
	case err := <-done:
		return err
	}
	return <-done
}
