// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/flowd-project/flowd/cmd/flowctl/cli"
	"github.com/flowd-project/flowd/lib/checkpoint"
	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/journal"
)

func diagCommand() *cli.Command {
	return &cli.Command{
		Name:        "diag",
		Summary:     "Inspect flowd's files offline",
		Description: "Inspect a journal or checkpoint directly, without a running server.",
		Subcommands: []*cli.Command{diagJournalCommand(), diagCheckpointCommand()},
	}
}

func diagJournalCommand() *cli.Command {
	var (
		after uint64
		raw   bool
	)
	return &cli.Command{
		Name:    "journal",
		Summary: "List the batches in a journal",
		Usage:   "flowctl diag journal <journal.db> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("journal", pflag.ContinueOnError)
			flagSet.Uint64Var(&after, "after", 0, "list only batches after this sequence")
			flagSet.BoolVar(&raw, "raw", false, "print each payload in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("diag journal: exactly one journal file is required")
			}
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			ctx := context.Background()
			j, err := journal.Open(ctx, args[0], compress.None, false, slog.New(slog.DiscardHandler))
			if err != nil {
				return err
			}
			defer j.Close()
			frames, err := j.Since(ctx, after)
			if err != nil {
				return err
			}
			return dumpFrames(os.Stdout, frames, raw)
		},
	}
}

// dumpFrames writes a header line per batch and a line per compound.
// A batch that fails verification is reported and the dump goes on.
func dumpFrames(w io.Writer, frames []delta.Frame, raw bool) error {
	for _, frame := range frames {
		batch, err := delta.DecodeFrame(frame)
		if err != nil {
			fmt.Fprintf(w, "#%d INVALID: %v\n", frame.Sequence, err)
			continue
		}
		fmt.Fprintf(w, "#%d %s %s %s by %s, %d compounds\n",
			batch.Sequence, batch.ID, batch.Time.Format(time.RFC3339Nano), batch.Command, batch.User, len(batch.Compounds))
		for _, compound := range batch.Compounds {
			fmt.Fprintf(w, "  %s %s\n", compound.Path, compound.Aspects())
		}
		if raw {
			notation, err := codec.Diagnose(frame.Payload)
			if err != nil {
				return fmt.Errorf("batch %d: %w", frame.Sequence, err)
			}
			fmt.Fprintf(w, "  %s\n", notation)
		}
	}
	return nil
}

func diagCheckpointCommand() *cli.Command {
	return &cli.Command{
		Name:    "checkpoint",
		Summary: "Print the tree held in a checkpoint",
		Usage:   "flowctl diag checkpoint <file>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("diag checkpoint: exactly one checkpoint file is required")
			}
			cp, err := checkpoint.Read(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("sequence %d taken %s\n", cp.Sequence, cp.Taken.Format(time.RFC3339))
			writeTree(os.Stdout, newTheme(stdoutStyled()), cp.Defs)
			return nil
		},
	}
}
