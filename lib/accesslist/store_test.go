// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowd-project/flowd/lib/clock"
	"github.com/flowd-project/flowd/lib/testutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStoreKeepsPolicyOnFailedReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.lists")
	writeFile(t, path, "4.4.14\n-fred\n")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if store.Policy().VerifyWriteAccess("fred", "/x") {
		t.Fatal("fred should be read-only")
	}

	writeFile(t, path, "4.4.14\nfred\n")
	if err := store.Reload(); err != nil {
		t.Fatal(err)
	}
	if !store.Policy().VerifyWriteAccess("fred", "/x") {
		t.Fatal("reload did not take effect")
	}

	writeFile(t, path, "4.4.1\n-fred\n")
	if err := store.Reload(); err == nil {
		t.Fatal("Reload accepted an old version")
	}
	if !store.Policy().VerifyWriteAccess("fred", "/x") {
		t.Error("failed reload replaced the policy")
	}
}

func TestStoreWithoutFile(t *testing.T) {
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !store.Policy().Empty() {
		t.Error("store without a file should hold an empty policy")
	}
	if err := store.Reload(); err != nil {
		t.Errorf("Reload = %v", err)
	}
	if _, err := NewStore(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("NewStore accepted a missing file")
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.lists")
	writeFile(t, path, "4.4.14\n-fred\n")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	reloads := make(chan error, 16)
	watcher := NewWatcher(store, clock.Real(), nil)
	watcher.SetDebounce(10 * time.Millisecond)
	watcher.OnReload = func(err error) {
		select {
		case reloads <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := watcher.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Replace by rename, the way editors and config managers do.
	// Retry until the watcher is registered and sees the change.
	deadline := time.Now().Add(5 * time.Second)
	for !store.Policy().VerifyWriteAccess("fred", "/x") {
		if time.Now().After(deadline) {
			t.Fatal("watcher never reloaded the access list")
		}
		staged := path + ".tmp"
		writeFile(t, staged, "4.4.14\nfred\n")
		if err := os.Rename(staged, path); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-reloads:
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
		case <-time.After(200 * time.Millisecond):
		}
	}

	writeFile(t, path, "not a version\n")
	// Successful reloads from the rename above may still be queued.
	for {
		err := testutil.RequireReceive[error](t, reloads, 5*time.Second, "waiting for failed reload")
		if err != nil {
			break
		}
	}
	if !store.Policy().VerifyWriteAccess("fred", "/x") {
		t.Error("broken file replaced the policy")
	}
}

func TestCreateWithAccess(t *testing.T) {
	current, err := user.Current()
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	dir := t.TempDir()

	readPath := filepath.Join(dir, "read.lists")
	if err := CreateWithReadAccess(readPath); err != nil {
		t.Fatal(err)
	}
	p, err := Load(readPath)
	if err != nil {
		t.Fatal(err)
	}
	if !p.VerifyReadAccess(current.Username, "/x") || p.VerifyWriteAccess(current.Username, "/x") {
		t.Error("read-access file grants the wrong rights")
	}

	writePath := filepath.Join(dir, "write.lists")
	if err := CreateWithWriteAccess(writePath); err != nil {
		t.Fatal(err)
	}
	p, err = Load(writePath)
	if err != nil {
		t.Fatal(err)
	}
	if !p.VerifyWriteAccess(current.Username, "/x") || p.VerifyWriteAccess("someone-else", "/x") {
		t.Error("write-access file grants the wrong rights")
	}
}
