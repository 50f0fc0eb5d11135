// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteUpsert = `
	INSERT INTO snapshots (key, value, updated_at) VALUES (?1, ?2, ?3)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path and
// ensures the snapshots table exists. Use ":memory:" for a private
// in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Errorf("sqlite: path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "sqlite: open")
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.With("path", path).Wrapf(err, "sqlite: ping")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, oops.With("path", path).Wrapf(err, "sqlite: create schema")
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("key", key).Wrapf(err, "sqlite: get")
	}
	return value, nil
}

// Put upserts key.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsert, key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return oops.With("key", key).Wrapf(err, "sqlite: put")
	}
	return nil
}

// Mutate reads and rewrites key inside a BEGIN IMMEDIATE transaction, which
// takes the database write lock before the read. Other connections, including
// ones in other processes, wait on busy_timeout; SQLITE_BUSY past that is
// retried.
func (s *SQLiteStore) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	err := withRetry(ctx, isSQLiteBusy, func(ctx context.Context) error {
		return s.mutateOnce(ctx, key, fn)
	})
	var abort *mutateAbort
	if errors.As(err, &abort) {
		return abort.err
	}
	if err != nil {
		return oops.With("key", key).Wrapf(err, "sqlite: mutate")
	}
	return nil
}

func (s *SQLiteStore) mutateOnce(ctx context.Context, key string, fn MutateFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()

	var current []byte
	found := true
	err = conn.QueryRowContext(ctx, `SELECT value FROM snapshots WHERE key = ?1`, key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return err
	}

	next, fnErr := fn(current, found)
	if fnErr != nil {
		return &mutateAbort{err: fnErr}
	}
	if _, err = conn.ExecContext(ctx, sqliteUpsert, key, next, time.Now().UTC().UnixMilli()); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `COMMIT`)
	return err
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?1`, key); err != nil {
		return oops.With("key", key).Wrapf(err, "sqlite: delete")
	}
	return nil
}

// Keys lists keys with the given prefix.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM snapshots WHERE substr(key, 1, length(?1)) = ?1`, prefix)
	if err != nil {
		return nil, oops.With("prefix", prefix).Wrapf(err, "sqlite: list keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, oops.Wrapf(err, "sqlite: scan key")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Wrapf(err, "sqlite: iterate keys")
	}
	return sortedWithPrefix(keys, prefix), nil
}

func isSQLiteBusy(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return sqErr.Code()&0xff == sqlite3.SQLITE_BUSY
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.Wrapf(err, "sqlite: close")
	}
	return nil
}
