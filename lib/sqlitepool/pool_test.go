// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/flowd-project/flowd/lib/sqlitepool"
)

var migrations = []string{
	`CREATE TABLE batches (sequence INTEGER PRIMARY KEY, command TEXT NOT NULL);`,
	`ALTER TABLE batches ADD COLUMN user TEXT NOT NULL DEFAULT '';`,
}

func TestOpenAppliesPragmas(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "flowd.db"), migrations, true)

	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if got := queryText(t, conn, "PRAGMA journal_mode"); got != "wal" {
		t.Errorf("journal_mode = %q, want wal", got)
	}
	if got := queryText(t, conn, "PRAGMA synchronous"); got != "2" {
		t.Errorf("synchronous = %s, want 2 (FULL)", got)
	}
}

func TestMigrationsAreIncremental(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.db")
	ctx := context.Background()

	first, err := sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: migrations[:1]})
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	if version, err := first.SchemaVersion(ctx); err != nil || version != 1 {
		t.Fatalf("SchemaVersion = %d, %v; want 1", version, err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openTestPool(t, path, migrations, false)
	if version, err := second.SchemaVersion(ctx); err != nil || version != 2 {
		t.Fatalf("SchemaVersion = %d, %v; want 2", version, err)
	}
	err = second.Tx(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO batches (sequence, command, user) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{1, "force", "fred"}})
	})
	if err != nil {
		t.Fatalf("insert after migration: %v", err)
	}
}

func TestNewerDatabaseIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.db")
	ctx := context.Background()

	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: migrations})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	pool.Close()

	_, err = sqlitepool.Open(ctx, sqlitepool.Config{Path: path, Migrations: migrations[:1]})
	if err == nil || !strings.Contains(err.Error(), "newer than this binary") {
		t.Fatalf("Open with older schema = %v, want version error", err)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "flowd.db"), migrations, false)
	ctx := context.Background()
	boom := errors.New("boom")

	err := pool.Tx(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "INSERT INTO batches (sequence, command) VALUES (1, 'suspend')", nil); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx = %v, want boom", err)
	}

	conn, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)
	if got := queryText(t, conn, "SELECT count(*) FROM batches"); got != "0" {
		t.Errorf("rows after rollback = %s, want 0", got)
	}
}

func TestConcurrentReaders(t *testing.T) {
	pool := openTestPool(t, filepath.Join(t.TempDir(), "flowd.db"), migrations, false)
	ctx := context.Background()
	err := pool.Tx(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `
			INSERT INTO batches (sequence, command) VALUES (1, 'a'), (2, 'b'), (3, 'c');
		`, nil)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	const readers = 8
	var waitGroup sync.WaitGroup
	failures := make(chan error, readers)
	for range readers {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			conn, err := pool.Take(ctx)
			if err != nil {
				failures <- err
				return
			}
			defer pool.Put(conn)

			var sum int64
			err = sqlitex.Execute(conn, "SELECT sequence FROM batches", &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					sum += stmt.ColumnInt64(0)
					return nil
				},
			})
			if err == nil && sum != 6 {
				err = errors.New("wrong sum")
			}
			if err != nil {
				failures <- err
			}
		}()
	}
	waitGroup.Wait()
	close(failures)
	for err := range failures {
		t.Errorf("reader: %v", err)
	}
}

func queryText(t *testing.T, conn *sqlite.Conn, query string) string {
	t.Helper()
	var result string
	err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			result = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	return result
}

func openTestPool(t *testing.T, path string, migrations []string, durable bool) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(context.Background(), sqlitepool.Config{
		Path:       path,
		PoolSize:   4,
		Durable:    durable,
		Migrations: migrations,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return pool
}
