// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// flowd serves a suite tree over a Unix socket. It recovers the tree
// from its checkpoint and journal, loads the configured definitions
// into an empty tree, gates every command through the access list and
// streams incremental changes to subscribed replicas.
//
// Configuration comes from the file named by --config or the
// FLOWD_CONFIG environment variable. See lib/config for the format.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/command"
	"github.com/flowd-project/flowd/lib/accesslist"
	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/config"
	"github.com/flowd-project/flowd/lib/journal"
	"github.com/flowd-project/flowd/lib/process"
	"github.com/flowd-project/flowd/lib/service"
	"github.com/flowd-project/flowd/lib/version"
	"github.com/flowd-project/flowd/server"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("flowd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to flowd.yaml (default: $FLOWD_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		version.Print("flowd")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, clock.Real(), logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// serve runs the server until ctx is cancelled or a component fails.
func serve(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	journalTag, checkpointTag, snapshotTag := cfg.Server.Compression()

	access, err := accesslist.NewStore(cfg.Paths.AccessList, logger)
	if err != nil {
		return err
	}

	j, err := journal.Open(ctx, cfg.Paths.Journal, journalTag, cfg.Server.JournalDurable, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	recovered, err := server.Recover(ctx, cfg.Paths.Checkpoint, j, logger)
	if err != nil {
		return fmt.Errorf("recovering state: %w", err)
	}

	s := server.New(server.Config{
		Defs:                recovered.Defs,
		Sequence:            recovered.Sequence,
		Access:              access,
		Journal:             j,
		Clock:               clk,
		Logger:              logger,
		SubscriberBuffer:    cfg.Server.SubscriberBuffer,
		HeartbeatInterval:   cfg.Server.HeartbeatInterval.Std(),
		SnapshotCompression: snapshotTag,
	})

	if err := loadDefinitions(ctx, s, cfg.Paths.Definitions, logger); err != nil {
		return err
	}

	socket := service.NewSocketServer(cfg.Paths.Socket, logger)
	socket.ResolveUser = authgate.LookupUID
	s.Register(socket)

	errs := make(chan error, 3)
	go func() { errs <- socket.Serve(ctx, nil) }()
	go func() {
		errs <- s.RunCheckpoints(ctx, server.CheckpointConfig{
			Path:        cfg.Paths.Checkpoint,
			Interval:    cfg.Server.CheckpointInterval.Std(),
			Retention:   cfg.Server.JournalRetention,
			Compression: checkpointTag,
		})
	}()
	running := 2
	if cfg.Server.WatchAccessList {
		go func() { errs <- accesslist.NewWatcher(access, clk, logger).Run(ctx) }()
		running++
	}

	logger.Info("flowd running",
		"version", version.Info(),
		"socket", cfg.Paths.Socket,
		"sequence", s.Sequence(),
		"environment", cfg.Environment,
	)

	var failure error
	for range running {
		if err := <-errs; err != nil && failure == nil {
			failure = err
			logger.Error("shutting down after failure", "error", err)
			stop()
		}
	}
	logger.Info("flowd stopped", "sequence", s.Sequence())
	return failure
}

// loadDefinitions loads the definitions file into a server that holds
// no suites. The load is journaled like any other command.
func loadDefinitions(ctx context.Context, s *server.Server, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	tree, _ := s.Snapshot(nil)
	if len(tree.Suites) > 0 {
		logger.Debug("definitions skipped, tree already holds suites", "path", path, "suites", len(tree.Suites))
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading definitions: %w", err)
	}
	user, err := authgate.CurrentUser()
	if err != nil {
		return err
	}
	load := command.NewLoad(data, false)
	if err := command.Prepare(load, user); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := s.Apply(ctx, load); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	logger.Info("definitions loaded", "path", path, "sequence", s.Sequence())
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "flowd serves a suite tree to flowctl clients and replicas.\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n  flowd [flags]\n\nFlags:\n")
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
