// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for flowd's local storage
// with a fixed set of pragmas and a versioned schema.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, do their work, and [Pool.Put] it back; a connection is
// never shared between goroutines. [Pool.Tx] runs a function inside an
// IMMEDIATE transaction on a pooled connection.
//
// # Pragmas
//
// Every connection starts with:
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous: NORMAL by default (committed transactions survive a
//     process crash), FULL when [Config.Durable] is set (they also
//     survive power loss).
//   - busy_timeout=5000: wait for the write lock instead of failing
//     with SQLITE_BUSY.
//   - cache_size=-8192, temp_store=MEMORY.
//
// # Schema
//
// [Config.Migrations] is an append-only list of SQL scripts. Open runs
// the scripts the database has not seen yet, in order, inside one
// transaction, and records progress in PRAGMA user_version. Never edit
// or reorder a released migration; append a new one.
package sqlitepool
