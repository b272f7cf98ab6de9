// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads flowd's YAML configuration.
//
// Configuration comes from exactly one file, named by the --config
// flag ([LoadFile]) or the FLOWD_CONFIG environment variable
// ([Load]). There is no search path and no per-field environment
// override; the file is the whole truth.
//
// The file may carry development, staging and production sections
// that override base values when [Config].Environment matches.
// Production tightens two defaults when it has no section of its own:
// the access list is watched for changes, and the journal is synced
// on every commit.
//
// Path fields are expanded after loading: ${HOME}, ${FLOWD_ROOT} and
// ${VAR:-default} patterns are replaced. [Config.Validate] reports
// every problem at once, joined with errors.Join.
package config
