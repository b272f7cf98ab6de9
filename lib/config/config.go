// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flowd-project/flowd/lib/compress"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// IsKnown reports whether e is one of the defined environments.
func (e Environment) IsKnown() bool {
	switch e {
	case Development, Staging, Production:
		return true
	}
	return false
}

// Config is the complete flowd configuration.
type Config struct {
	Environment Environment  `yaml:"environment"`
	Paths       PathsConfig  `yaml:"paths"`
	Server      ServerConfig `yaml:"server"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Server *ServerConfig `yaml:"server,omitempty"`
}

// PathsConfig locates flowd's files.
type PathsConfig struct {
	// Root is the base directory for flowd state.
	Root string `yaml:"root"`

	// Socket is the Unix socket the server listens on and clients
	// dial.
	Socket string `yaml:"socket"`

	// AccessList is the access list file. Empty means no access list:
	// every user may read and write everything.
	AccessList string `yaml:"access_list"`

	// Journal is the SQLite batch journal.
	Journal string `yaml:"journal"`

	// Checkpoint is the tree checkpoint file.
	Checkpoint string `yaml:"checkpoint"`

	// Definitions is a JSONC suite definition file loaded when no
	// checkpoint exists.
	Definitions string `yaml:"definitions"`
}

// ServerConfig tunes the server.
type ServerConfig struct {
	// SubscriberBuffer is how many batches a subscriber may lag
	// before it is sent a fresh snapshot.
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// HeartbeatInterval is the idle interval between heartbeat frames
	// on subscribe streams.
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`

	// CheckpointInterval is how often the tree is checkpointed. Zero
	// disables periodic checkpoints; one is still written at shutdown.
	CheckpointInterval Duration `yaml:"checkpoint_interval"`

	// JournalRetention is how many batches the journal keeps after a
	// checkpoint.
	JournalRetention int `yaml:"journal_retention"`

	// JournalDurable syncs the journal on every commit.
	JournalDurable bool `yaml:"journal_durable"`

	// JournalCompression, CheckpointCompression and
	// SnapshotCompression name algorithms from lib/compress.
	JournalCompression    string `yaml:"journal_compression"`
	CheckpointCompression string `yaml:"checkpoint_compression"`
	SnapshotCompression   string `yaml:"snapshot_compression"`

	// WatchAccessList reloads the access list when its file changes.
	WatchAccessList bool `yaml:"watch_access_list"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// Duration is a time.Duration written in YAML as a Go duration string
// such as "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used as the base before the file
// is loaded.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".local", "state", "flowd")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:       root,
			Socket:     "${FLOWD_ROOT}/flowd.sock",
			Journal:    "${FLOWD_ROOT}/journal.db",
			Checkpoint: "${FLOWD_ROOT}/flowd.checkpoint",
		},
		Server: ServerConfig{
			SubscriberBuffer:      256,
			HeartbeatInterval:     Duration(30 * time.Second),
			CheckpointInterval:    Duration(5 * time.Minute),
			JournalRetention:      10000,
			JournalCompression:    "zstd",
			CheckpointCompression: "zstd",
			SnapshotCompression:   "lz4",
			LogLevel:              "info",
		},
	}
}

// Load loads the file named by FLOWD_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("FLOWD_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("FLOWD_CONFIG environment variable not set; " +
			"set it to the path of your flowd.yaml, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults, applies
// the environment section and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			c.Server.WatchAccessList = true
			c.Server.JournalDurable = true
		}
	}
	if overrides == nil {
		return
	}

	if p := overrides.Paths; p != nil {
		override(&c.Paths.Root, p.Root)
		override(&c.Paths.Socket, p.Socket)
		override(&c.Paths.AccessList, p.AccessList)
		override(&c.Paths.Journal, p.Journal)
		override(&c.Paths.Checkpoint, p.Checkpoint)
		override(&c.Paths.Definitions, p.Definitions)
	}

	if s := overrides.Server; s != nil {
		override(&c.Server.SubscriberBuffer, s.SubscriberBuffer)
		override(&c.Server.HeartbeatInterval, s.HeartbeatInterval)
		override(&c.Server.CheckpointInterval, s.CheckpointInterval)
		override(&c.Server.JournalRetention, s.JournalRetention)
		override(&c.Server.JournalCompression, s.JournalCompression)
		override(&c.Server.CheckpointCompression, s.CheckpointCompression)
		override(&c.Server.SnapshotCompression, s.SnapshotCompression)
		override(&c.Server.LogLevel, s.LogLevel)
		// Booleans cannot distinguish "unset" from false, so an
		// environment section always decides them.
		c.Server.WatchAccessList = s.WatchAccessList
		c.Server.JournalDurable = s.JournalDurable
	}
}

// override replaces *field with value unless value is the zero value.
func override[T comparable](field *T, value T) {
	var zero T
	if value != zero {
		*field = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"FLOWD_ROOT": c.Paths.Root,
		"HOME":       os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["FLOWD_ROOT"] = c.Paths.Root

	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
	c.Paths.AccessList = expandVars(c.Paths.AccessList, vars)
	c.Paths.Journal = expandVars(c.Paths.Journal, vars)
	c.Paths.Checkpoint = expandVars(c.Paths.Checkpoint, vars)
	c.Paths.Definitions = expandVars(c.Paths.Definitions, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if !c.Environment.IsKnown() {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, errors.New("paths.socket is required"))
	}
	if c.Paths.Journal == "" {
		errs = append(errs, errors.New("paths.journal is required"))
	}
	if c.Paths.Checkpoint == "" {
		errs = append(errs, errors.New("paths.checkpoint is required"))
	}
	if c.Server.WatchAccessList && c.Paths.AccessList == "" {
		errs = append(errs, errors.New("server.watch_access_list requires paths.access_list"))
	}
	if c.Server.SubscriberBuffer <= 0 {
		errs = append(errs, fmt.Errorf("server.subscriber_buffer must be positive, got %d", c.Server.SubscriberBuffer))
	}
	if c.Server.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("server.heartbeat_interval must be positive"))
	}
	if c.Server.CheckpointInterval < 0 {
		errs = append(errs, errors.New("server.checkpoint_interval must not be negative"))
	}
	if c.Server.JournalRetention <= 0 {
		errs = append(errs, fmt.Errorf("server.journal_retention must be positive, got %d", c.Server.JournalRetention))
	}
	for field, name := range map[string]string{
		"server.journal_compression":    c.Server.JournalCompression,
		"server.checkpoint_compression": c.Server.CheckpointCompression,
		"server.snapshot_compression":   c.Server.SnapshotCompression,
	} {
		if _, err := compress.ParseTag(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	if !slices.Contains(logLevels, c.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level must be one of %v, got %q", logLevels, c.Server.LogLevel))
	}

	return errors.Join(errs...)
}

// Level returns the configured log level.
func (s ServerConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Compression returns the parsed journal, checkpoint and snapshot
// algorithms. Call after Validate.
func (s ServerConfig) Compression() (journal, checkpoint, snapshot compress.Tag) {
	journal, _ = compress.ParseTag(s.JournalCompression)
	checkpoint, _ = compress.ParseTag(s.CheckpointCompression)
	snapshot, _ = compress.ParseTag(s.SnapshotCompression)
	return journal, checkpoint, snapshot
}

// EnsurePaths creates the root directory and the parent directories of
// every configured file.
func (c *Config) EnsurePaths() error {
	directories := []string{c.Paths.Root}
	for _, file := range []string{c.Paths.Socket, c.Paths.Journal, c.Paths.Checkpoint} {
		if file != "" {
			directories = append(directories, filepath.Dir(file))
		}
	}
	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}
	return nil
}
