// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
)

func sampleDefs(t *testing.T) *defs.Defs {
	t.Helper()
	d, err := defs.ParseDefinitions([]byte(`{
	  "server_variables": [{"name": "FLOWD_HOME", "value": "/var/flowd"}],
	  "suites": [{"kind": "suite", "name": "ops", "children": [
	    {"kind": "family", "name": "nightly", "children": [{"kind": "task", "name": "backup"}]}
	  ]}]
	}`))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	d.Find("/ops/nightly/backup").SetStatus(nil, defs.StatusRunning)
	return d
}

func TestWriteRead(t *testing.T) {
	for _, tag := range []compress.Tag{compress.None, compress.LZ4, compress.Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "flowd.checkpoint")
			taken := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
			d := sampleDefs(t)

			if err := Write(path, Checkpoint{Sequence: 42, Taken: taken, Defs: d}, tag); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.Sequence != 42 {
				t.Errorf("Sequence = %d, want 42", got.Sequence)
			}
			if !got.Taken.Equal(taken) {
				t.Errorf("Taken = %v, want %v", got.Taken, taken)
			}
			if !got.Defs.Equal(d) {
				t.Error("tree changed across checkpoint")
			}
			if node := got.Defs.Find("/ops/nightly/backup"); node == nil || node.Parent().Name != "nightly" {
				t.Error("read tree is not linked")
			}
		})
	}
}

func TestWriteReplacesAndLeavesNoTemporary(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "flowd.checkpoint")
	d := sampleDefs(t)

	for sequence := uint64(1); sequence <= 2; sequence++ {
		if err := Write(path, Checkpoint{Sequence: sequence, Taken: time.Now(), Defs: d}, compress.Zstd); err != nil {
			t.Fatalf("Write %d: %v", sequence, err)
		}
	}
	got, err := Read(path)
	if err != nil || got.Sequence != 2 {
		t.Fatalf("Read = %d, %v; want sequence 2", got.Sequence, err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.checkpoint")
	if _, err := Read(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read = %v, want ErrNotExist", err)
	}
	if _, found, err := Load(path); found || err != nil {
		t.Errorf("Load = found %v, %v; want not found, nil", found, err)
	}
	if err := Clear(path); err != nil {
		t.Errorf("Clear of missing file: %v", err)
	}
}

func TestReadRejectsOtherFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.checkpoint")
	data, err := codec.Marshal(file{Format: FormatVersion + 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("Read accepted a future format")
	}

	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("Load accepted garbage")
	}
}
