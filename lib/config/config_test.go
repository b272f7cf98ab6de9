// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flowd-project/flowd/lib/compress"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultIsValidOnceExpanded(t *testing.T) {
	cfg := Default()
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
	if !strings.HasPrefix(cfg.Paths.Socket, cfg.Paths.Root+"/") {
		t.Errorf("socket %q not under root %q", cfg.Paths.Socket, cfg.Paths.Root)
	}
	if cfg.Server.HeartbeatInterval.Std() != 30*time.Second {
		t.Errorf("heartbeat = %v", cfg.Server.HeartbeatInterval.Std())
	}
}

func TestLoadRequiresFlowdConfig(t *testing.T) {
	t.Setenv("FLOWD_CONFIG", "")
	_, err := Load()
	if err == nil || !strings.HasPrefix(err.Error(), "FLOWD_CONFIG environment variable not set") {
		t.Fatalf("Load() = %v, want missing FLOWD_CONFIG error", err)
	}
}

func TestLoadFromEnvironmentVariable(t *testing.T) {
	path := writeConfig(t, `
environment: staging
paths:
  root: /srv/flowd
  access_list: ${FLOWD_ROOT}/flowd.lists
server:
  heartbeat_interval: 5s
  subscriber_buffer: 64
`)
	t.Setenv("FLOWD_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("environment = %s, want staging", cfg.Environment)
	}
	if cfg.Paths.AccessList != "/srv/flowd/flowd.lists" {
		t.Errorf("access_list = %q", cfg.Paths.AccessList)
	}
	if cfg.Paths.Journal != "/srv/flowd/journal.db" {
		t.Errorf("journal = %q, want default under the configured root", cfg.Paths.Journal)
	}
	if cfg.Server.HeartbeatInterval.Std() != 5*time.Second || cfg.Server.SubscriberBuffer != 64 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.CheckpointInterval.Std() != 5*time.Minute {
		t.Errorf("unset checkpoint_interval lost its default: %v", cfg.Server.CheckpointInterval.Std())
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: development
paths:
  root: /srv/flowd
development:
  paths:
    socket: /tmp/flowd-dev.sock
  server:
    log_level: debug
production:
  server:
    log_level: warn
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Socket != "/tmp/flowd-dev.sock" {
		t.Errorf("socket = %q", cfg.Paths.Socket)
	}
	if cfg.Server.LogLevel != "debug" || cfg.Server.Level() != slog.LevelDebug {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
	if cfg.Paths.Root != "/srv/flowd" {
		t.Errorf("override without root cleared it: %q", cfg.Paths.Root)
	}
}

func TestProductionDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /srv/flowd
  access_list: /etc/flowd/flowd.lists
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.Server.WatchAccessList || !cfg.Server.JournalDurable {
		t.Errorf("production without a section: watch=%v durable=%v", cfg.Server.WatchAccessList, cfg.Server.JournalDurable)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("FLOWD_TEST_DIR", "/from/env")
	vars := map[string]string{"FLOWD_ROOT": "/root/of/flowd"}
	tests := []struct {
		input string
		want  string
	}{
		{"${FLOWD_ROOT}/x", "/root/of/flowd/x"},
		{"${FLOWD_TEST_DIR}/y", "/from/env/y"},
		{"${FLOWD_UNSET_VARIABLE:-/fallback}", "/fallback"},
		{"${FLOWD_UNSET_VARIABLE}", ""},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.expandVariables()
	cfg.Environment = "moon"
	cfg.Server.SubscriberBuffer = 0
	cfg.Server.JournalCompression = "brotli"
	cfg.Server.WatchAccessList = true
	cfg.Server.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, fragment := range []string{
		"invalid environment",
		"subscriber_buffer",
		"server.journal_compression",
		"watch_access_list requires paths.access_list",
		"log_level",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Validate error missing %q:\n%v", fragment, err)
		}
	}
}

func TestBadDuration(t *testing.T) {
	path := writeConfig(t, "server:\n  heartbeat_interval: soon\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile accepted an invalid duration")
	}
}

func TestCompression(t *testing.T) {
	journal, checkpoint, snapshot := Default().Server.Compression()
	if journal != compress.Zstd || checkpoint != compress.Zstd || snapshot != compress.LZ4 {
		t.Errorf("Compression() = %v %v %v", journal, checkpoint, snapshot)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "state")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.expandVariables()
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}
