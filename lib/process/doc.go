// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the flowd binaries.
// Fatal reports an error from run() to stderr before the structured
// logger exists, or after it has been torn down, and exits.
package process
