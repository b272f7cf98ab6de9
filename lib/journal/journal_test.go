// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowd-project/flowd/lib/change"
	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/memento"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"), compress.Zstd, false, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// publishN publishes n status changes through a publisher writing to j
// and returns the frames.
func publishN(t *testing.T, j *Journal, n int) []delta.Frame {
	t.Helper()
	d, err := defs.ParseDefinitions([]byte(`{"suites": [{"kind": "suite", "name": "s", "children": [{"kind": "task", "name": "t"}]}]}`))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	publisher := delta.NewPublisher(0, j, clock.Fake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)), discardLogger())
	statuses := []defs.Status{defs.StatusSubmitted, defs.StatusRunning, defs.StatusComplete, defs.StatusQueued}

	var frames []delta.Frame
	for i := range n {
		rec := change.New()
		d.Find("/s/t").SetStatus(rec, statuses[i%len(statuses)])
		frame, err := publisher.Publish(context.Background(), "force", "fred", memento.Build(d, rec))
		if err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
		frames = append(frames, *frame)
	}
	return frames
}

func TestSinceReturnsFramesInOrder(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	if latest, err := j.Latest(ctx); err != nil || latest != 0 {
		t.Fatalf("empty Latest = %d, %v", latest, err)
	}

	published := publishN(t, j, 5)

	latest, err := j.Latest(ctx)
	if err != nil || latest != 5 {
		t.Fatalf("Latest = %d, %v; want 5", latest, err)
	}
	frames, err := j.Since(ctx, 2)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("Since(2) returned %d frames, want 3", len(frames))
	}
	for i, frame := range frames {
		want := published[i+2]
		if frame.Sequence != want.Sequence || frame.ID != want.ID || string(frame.Digest) != string(want.Digest) {
			t.Errorf("frame %d = seq %d id %s, want seq %d id %s", i, frame.Sequence, frame.ID, want.Sequence, want.ID)
		}
		if _, err := delta.DecodeFrame(frame); err != nil {
			t.Errorf("frame %d does not verify after storage: %v", frame.Sequence, err)
		}
	}

	if frames, err := j.Since(ctx, 5); err != nil || frames != nil {
		t.Errorf("Since(latest) = %v, %v; want nothing", frames, err)
	}
}

func TestAppendRejectsDuplicateSequence(t *testing.T) {
	j := openJournal(t)
	published := publishN(t, j, 1)
	if err := j.Append(context.Background(), published[0]); err == nil {
		t.Fatal("duplicate Append succeeded")
	}
}

func TestTrim(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	publishN(t, j, 6)

	removed, err := j.Trim(ctx, 2)
	if err != nil || removed != 4 {
		t.Fatalf("Trim = %d, %v; want 4 removed", removed, err)
	}
	if _, err := j.Since(ctx, 3); !errors.Is(err, ErrTrimmed) {
		t.Errorf("Since(3) after trim = %v, want ErrTrimmed", err)
	}
	frames, err := j.Since(ctx, 4)
	if err != nil || len(frames) != 2 {
		t.Errorf("Since(4) = %d frames, %v; want 2", len(frames), err)
	}

	if removed, err := j.Trim(ctx, 0); err != nil || removed != 1 {
		t.Errorf("Trim(0) = %d, %v; want 1 removed", removed, err)
	}
	if latest, _ := j.Latest(ctx); latest != 6 {
		t.Errorf("Trim(0) dropped the newest batch: latest = %d", latest)
	}
}

func TestReopenKeepsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	j, err := Open(ctx, path, compress.Zstd, true, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	publishN(t, j, 3)
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path, compress.None, true, discardLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	frames, err := reopened.Since(ctx, 0)
	if err != nil || len(frames) != 3 {
		t.Fatalf("Since(0) after reopen = %d frames, %v", len(frames), err)
	}
}
