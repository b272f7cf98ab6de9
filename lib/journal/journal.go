// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/delta"
	"github.com/flowd-project/flowd/lib/sqlitepool"
)

// ErrTrimmed is returned by Since when batches the caller needs have
// already been trimmed.
var ErrTrimmed = errors.New("journal no longer holds the requested batches")

var migrations = []string{
	`CREATE TABLE batches (
		sequence    INTEGER PRIMARY KEY,
		batch_id    TEXT    NOT NULL,
		command     TEXT    NOT NULL,
		user        TEXT    NOT NULL,
		created_at  INTEGER NOT NULL,
		compression INTEGER NOT NULL,
		size        INTEGER NOT NULL,
		frame       BLOB    NOT NULL
	);`,
}

// Journal is a SQLite-backed delta.Journal.
type Journal struct {
	pool        *sqlitepool.Pool
	compression compress.Tag
	logger      *slog.Logger
}

var _ delta.Journal = (*Journal)(nil)

// Open opens or creates the journal database at path. Frames are
// written with the given compression. A durable journal syncs every
// commit to disk.
func Open(ctx context.Context, path string, compression compress.Tag, durable bool, logger *slog.Logger) (*Journal, error) {
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       path,
		Durable:    durable,
		Migrations: migrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{pool: pool, compression: compression, logger: logger}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.pool.Close()
}

// Append stores frame. Appending a sequence number that is already
// present fails.
func (j *Journal) Append(ctx context.Context, frame delta.Frame) error {
	data, err := frame.Marshal()
	if err != nil {
		return err
	}
	blob, err := compress.Pack(j.compression, data)
	if err != nil {
		return fmt.Errorf("compressing batch %d: %w", frame.Sequence, err)
	}
	return j.pool.Tx(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO batches (sequence, batch_id, command, user, created_at, compression, size, frame)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				int64(frame.Sequence), frame.ID, frame.Command, frame.User, frame.Time,
				int64(blob.Tag), int64(blob.Size), blob.Data,
			}})
	})
}

// Since returns every frame with a sequence number greater than after,
// in order. If the journal has been trimmed past after+1 it returns
// ErrTrimmed.
func (j *Journal) Since(ctx context.Context, after uint64) ([]delta.Frame, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer j.pool.Put(conn)

	oldest, latest, err := bounds(conn)
	if err != nil {
		return nil, err
	}
	if latest <= after {
		return nil, nil
	}
	if oldest > after+1 {
		return nil, fmt.Errorf("%w: need %d, oldest is %d", ErrTrimmed, after+1, oldest)
	}

	var frames []delta.Frame
	err = sqlitex.Execute(conn, `
		SELECT sequence, compression, size, frame FROM batches
		WHERE sequence > ? ORDER BY sequence`,
		&sqlitex.ExecOptions{
			Args: []any{int64(after)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				data := make([]byte, stmt.ColumnLen(3))
				stmt.ColumnBytes(3, data)
				raw, err := compress.Unpack(compress.Blob{
					Tag:  compress.Tag(stmt.ColumnInt64(1)),
					Size: int(stmt.ColumnInt64(2)),
					Data: data,
				})
				if err != nil {
					return fmt.Errorf("batch %d: %w", stmt.ColumnInt64(0), err)
				}
				frame, err := delta.UnmarshalFrame(raw)
				if err != nil {
					return fmt.Errorf("batch %d: %w", stmt.ColumnInt64(0), err)
				}
				frames = append(frames, frame)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return frames, nil
}

// Latest returns the highest journaled sequence number, or zero for an
// empty journal.
func (j *Journal) Latest(ctx context.Context) (uint64, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer j.pool.Put(conn)
	_, latest, err := bounds(conn)
	return latest, err
}

// Trim deletes all but the newest keep batches and returns how many
// rows it removed. The newest batch is always kept so that Since can
// tell a trimmed journal from an empty one.
func (j *Journal) Trim(ctx context.Context, keep int) (int, error) {
	keep = max(keep, 1)
	var removed int
	err := j.pool.Tx(ctx, func(conn *sqlite.Conn) error {
		_, latest, err := bounds(conn)
		if err != nil {
			return err
		}
		cutoff := int64(latest) - int64(keep)
		if cutoff <= 0 {
			return nil
		}
		if err := sqlitex.Execute(conn, "DELETE FROM batches WHERE sequence <= ?",
			&sqlitex.ExecOptions{Args: []any{cutoff}}); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("trimming journal: %w", err)
	}
	if removed > 0 {
		j.logger.Info("journal trimmed", "removed", removed, "kept", keep)
	}
	return removed, nil
}

// bounds returns the oldest and newest sequence numbers, both zero for
// an empty journal.
func bounds(conn *sqlite.Conn) (oldest, latest uint64, err error) {
	err = sqlitex.Execute(conn, "SELECT coalesce(min(sequence), 0), coalesce(max(sequence), 0) FROM batches",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				oldest = uint64(stmt.ColumnInt64(0))
				latest = uint64(stmt.ColumnInt64(1))
				return nil
			},
		})
	if err != nil {
		return 0, 0, fmt.Errorf("reading journal bounds: %w", err)
	}
	return oldest, latest, nil
}
