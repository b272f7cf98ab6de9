// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
)

// FormatVersion is written into every checkpoint file. Read rejects
// files with a different version.
const FormatVersion = 1

// Checkpoint is the tree as of a batch sequence number.
type Checkpoint struct {
	Sequence uint64
	Taken    time.Time
	Defs     *defs.Defs
}

type file struct {
	Format   int           `cbor:"format"`
	Sequence uint64        `cbor:"sequence"`
	Taken    int64         `cbor:"taken"`
	Tree     compress.Blob `cbor:"tree"`
}

// Write stores cp at path, replacing any previous checkpoint
// atomically.
func Write(path string, cp Checkpoint, compression compress.Tag) error {
	tree, err := defs.Encode(cp.Defs)
	if err != nil {
		return fmt.Errorf("encoding checkpoint tree: %w", err)
	}
	blob, err := compress.Pack(compression, tree)
	if err != nil {
		return fmt.Errorf("compressing checkpoint tree: %w", err)
	}
	data, err := codec.Marshal(file{
		Format:   FormatVersion,
		Sequence: cp.Sequence,
		Taken:    cp.Taken.UnixNano(),
		Tree:     blob,
	})
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	temporaryPath := path + ".tmp"
	handle, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary checkpoint file: %w", err)
	}
	if _, err := handle.Write(data); err != nil {
		handle.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary checkpoint file: %w", err)
	}
	if err := handle.Sync(); err != nil {
		handle.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary checkpoint file: %w", err)
	}
	if err := handle.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary checkpoint file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}

	// Persist the rename itself.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// Read loads the checkpoint at path. A missing file is reported as an
// error satisfying errors.Is(err, os.ErrNotExist).
func Read(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, err
	}
	var stored file
	if err := codec.Unmarshal(data, &stored); err != nil {
		return Checkpoint{}, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	if stored.Format != FormatVersion {
		return Checkpoint{}, fmt.Errorf("checkpoint %s has format %d, want %d", path, stored.Format, FormatVersion)
	}
	tree, err := compress.Unpack(stored.Tree)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("decompressing checkpoint %s: %w", path, err)
	}
	d, err := defs.Decode(tree)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("decoding checkpoint %s: %w", path, err)
	}
	return Checkpoint{
		Sequence: stored.Sequence,
		Taken:    time.Unix(0, stored.Taken).UTC(),
		Defs:     d,
	}, nil
}

// Load is Read with a missing file reported as found == false rather
// than an error.
func Load(path string) (cp Checkpoint, found bool, err error) {
	cp, err = Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	return cp, true, nil
}

// Clear removes the checkpoint at path. A missing file is not an
// error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
