// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/change"
	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/memento"
	"github.com/flowd-project/flowd/lib/notify"
	"github.com/flowd-project/flowd/lib/testutil"
)

const tree = `{
  "suites": [
    {"kind": "suite", "name": "s1", "children": [
      {"kind": "family", "name": "f", "children": [
        {"kind": "task", "name": "t1"},
        {"kind": "task", "name": "t2"}
      ]}
    ]}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture pairs an authoritative tree and its publisher with a replica
// reset from a snapshot of that tree.
type fixture struct {
	server    *defs.Defs
	publisher *delta.Publisher
	replica   *Replica
	bus       *notify.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server, err := defs.ParseDefinitions([]byte(tree))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	bus := &notify.Bus{}
	r := New(bus, discardLogger())
	r.Reset(server.Clone(), 0)
	return &fixture{
		server:    server,
		publisher: delta.NewPublisher(0, nil, clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), discardLogger()),
		replica:   r,
		bus:       bus,
	}
}

// run executes command against the server and returns the frame it
// published.
func (f *fixture) run(t *testing.T, command func(*change.Recorder)) delta.Frame {
	t.Helper()
	rec := change.New()
	command(rec)
	frame, err := f.publisher.Publish(context.Background(), "test", "fred", memento.Build(f.server, rec))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if frame == nil {
		t.Fatal("command published nothing")
	}
	return *frame
}

func (f *fixture) requireConverged(t *testing.T) {
	t.Helper()
	f.replica.View(func(d *defs.Defs) {
		if !f.server.Equal(d) {
			t.Fatal("replica diverged from server")
		}
	})
}

func TestApplyConverges(t *testing.T) {
	f := newFixture(t)
	frames := []delta.Frame{
		f.run(t, func(rec *change.Recorder) {
			f.server.Find("/s1/f/t1").SetStatus(rec, defs.StatusRunning)
		}),
		f.run(t, func(rec *change.Recorder) {
			task := f.server.Find("/s1/f/t1")
			task.SetStatus(rec, defs.StatusComplete)
			if err := task.SetVariable(rec, "RESULT", "ok"); err != nil {
				t.Fatal(err)
			}
		}),
		f.run(t, func(rec *change.Recorder) {
			if err := f.server.Find("/s1/f").AddChild(rec, defs.NewNode(defs.KindTask, "t3")); err != nil {
				t.Fatal(err)
			}
		}),
	}
	for _, frame := range frames {
		if err := f.replica.Apply(frame); err != nil {
			t.Fatalf("Apply(%d): %v", frame.Sequence, err)
		}
	}
	f.requireConverged(t)
	if f.replica.Sequence() != 3 {
		t.Errorf("Sequence = %d, want 3", f.replica.Sequence())
	}
	if f.replica.ResyncRequired() {
		t.Error("clean apply requires resync")
	}
}

func TestOneNotificationPerCompound(t *testing.T) {
	f := newFixture(t)
	var got []notify.Change
	f.bus.Register(notify.ObserverFunc(func(c notify.Change) { got = append(got, c) }))

	frame := f.run(t, func(rec *change.Recorder) {
		task := f.server.Find("/s1/f/t2")
		task.SetSuspended(rec, true)
		task.SetDefStatus(rec, defs.StatusComplete)
		task.SetFlag(rec, defs.FlagLate)
	})
	if err := f.replica.Apply(frame); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	want := aspect.Of(aspect.Suspended, aspect.DefStatus, aspect.Flag)
	if got[0].Path != "/s1/f/t2" || got[0].Aspects != want || got[0].Sequence != 1 {
		t.Errorf("notification = %s %v seq %d, want /s1/f/t2 %v seq 1", got[0].Path, got[0].Aspects, got[0].Sequence, want)
	}
	if got[0].Node == nil || got[0].Node.Name != "t2" {
		t.Errorf("notification node = %v", got[0].Node)
	}
}

func TestOutOfOrderRequiresResync(t *testing.T) {
	f := newFixture(t)
	first := f.run(t, func(rec *change.Recorder) {
		f.server.Find("/s1/f/t1").SetStatus(rec, defs.StatusRunning)
	})
	second := f.run(t, func(rec *change.Recorder) {
		f.server.Find("/s1/f/t1").SetStatus(rec, defs.StatusComplete)
	})

	err := f.replica.Apply(second)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Code != BatchOutOfOrder || !syncErr.Resync() {
		t.Fatalf("Apply(second) = %v, want BatchOutOfOrder", err)
	}
	testutil.RequireReceive(t, f.replica.Resync(), time.Second, "resync signal")

	if err := f.replica.Apply(first); !errors.Is(err, ErrResyncRequired) {
		t.Errorf("Apply after failure = %v, want ErrResyncRequired", err)
	}

	snapshot := f.server.Clone()
	f.replica.Reset(snapshot, f.publisher.Sequence())
	if f.replica.ResyncRequired() {
		t.Fatal("Reset did not clear resync")
	}
	f.requireConverged(t)
}

func TestCorruptFrameLeavesTreeUntouched(t *testing.T) {
	f := newFixture(t)
	frame := f.run(t, func(rec *change.Recorder) {
		f.server.Find("/s1/f/t1").SetStatus(rec, defs.StatusAborted)
	})
	before, _ := f.replica.Snapshot()

	frame.Payload = append([]byte(nil), frame.Payload...)
	frame.Payload[0] ^= 0xff
	err := f.replica.Apply(frame)
	if !errors.Is(err, &SyncError{Code: DecodeFailure}) {
		t.Fatalf("Apply(corrupt) = %v, want DecodeFailure", err)
	}
	if !errors.Is(err, delta.ErrDigestMismatch) {
		t.Errorf("Apply(corrupt) = %v, want to wrap ErrDigestMismatch", err)
	}
	f.replica.View(func(d *defs.Defs) {
		if !before.Equal(d) {
			t.Error("corrupt frame changed the tree")
		}
	})
	if f.replica.Sequence() != 0 {
		t.Errorf("corrupt frame advanced sequence to %d", f.replica.Sequence())
	}
}

func TestMissingPathRequiresResync(t *testing.T) {
	f := newFixture(t)
	// Diverge the replica behind the protocol's back.
	f.replica.View(func(d *defs.Defs) {
		if err := d.Delete(nil, "/s1/f/t2"); err != nil {
			t.Fatal(err)
		}
	})
	frame := f.run(t, func(rec *change.Recorder) {
		f.server.Find("/s1/f/t2").SetSuspended(rec, true)
	})

	err := f.replica.Apply(frame)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Code != PathNotFound || syncErr.Path != "/s1/f/t2" {
		t.Fatalf("Apply = %v, want PathNotFound for /s1/f/t2", err)
	}
	if !f.replica.ResyncRequired() {
		t.Error("missing path did not require resync")
	}
}

func TestFailedBatchNotifiesNothing(t *testing.T) {
	f := newFixture(t)
	var got []notify.Change
	f.bus.Register(notify.ObserverFunc(func(c notify.Change) { got = append(got, c) }))
	f.replica.View(func(d *defs.Defs) {
		if err := d.Delete(nil, "/s1/f/t2"); err != nil {
			t.Fatal(err)
		}
	})
	frame := f.run(t, func(rec *change.Recorder) {
		f.server.Find("/s1/f/t1").SetSuspended(rec, true)
		f.server.Find("/s1/f/t2").SetSuspended(rec, true)
	})

	var syncErr *SyncError
	if err := f.replica.Apply(frame); !errors.As(err, &syncErr) || syncErr.Code != PathNotFound {
		t.Fatalf("Apply = %v, want PathNotFound", err)
	}
	if len(got) != 0 {
		t.Errorf("observers saw %d changes from a failed batch, want none", len(got))
	}
	if f.replica.Sequence() != 0 {
		t.Errorf("failed batch advanced sequence to %d", f.replica.Sequence())
	}
}

func TestRequestResync(t *testing.T) {
	f := newFixture(t)
	f.replica.RequestResync("server dropped frames")
	if !f.replica.ResyncRequired() {
		t.Fatal("RequestResync had no effect")
	}
	testutil.RequireReceive(t, f.replica.Resync(), time.Second, "resync signal")

	fresh := New(nil, discardLogger())
	if !fresh.ResyncRequired() {
		t.Error("new replica accepts frames before Reset")
	}
}
