// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// pgPool is the subset of pgxpool.Pool used by PostgresStore; pgxmock
// satisfies it in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

const pgUpsert = `
	INSERT INTO campusid_snapshots (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// PostgresStore implements Store on the campusid_snapshots table.
// The schema is created by Migrator.
type PostgresStore struct {
	pool pgPool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, oops.Errorf("postgres: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Wrapf(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Wrapf(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool.
func NewPostgresStoreWithPool(pool pgPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get reads key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM campusid_snapshots WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get snapshot").With("key", key).Wrap(err)
	}
	return value, nil
}

// Put upserts key, retrying serialization failures and deadlocks.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	err := withRetry(ctx, isRetryablePgError, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, pgUpsert, key, value)
		return err
	})
	if err != nil {
		return oops.With("operation", "put snapshot").With("key", key).Wrap(err)
	}
	return nil
}

// Mutate reads and rewrites key in a transaction holding a transaction-scoped
// advisory lock on the key, so concurrent Mutate calls from any client are
// serialized even while the row does not exist yet.
func (s *PostgresStore) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	err := withRetry(ctx, isRetryablePgError, func(ctx context.Context) error {
		return s.mutateOnce(ctx, key, fn)
	})
	var abort *mutateAbort
	if errors.As(err, &abort) {
		return abort.err
	}
	if err != nil {
		return oops.With("operation", "mutate snapshot").With("key", key).Wrap(err)
	}
	return nil
}

func (s *PostgresStore) mutateOnce(ctx context.Context, key string, fn MutateFunc) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return err
	}

	var current []byte
	found := true
	err = tx.QueryRow(ctx, `SELECT value FROM campusid_snapshots WHERE key = $1`, key).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		found = false
	case err != nil:
		return err
	}

	next, fnErr := fn(current, found)
	if fnErr != nil {
		return &mutateAbort{err: fnErr}
	}
	if _, err = tx.Exec(ctx, pgUpsert, key, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	err := withRetry(ctx, isRetryablePgError, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `DELETE FROM campusid_snapshots WHERE key = $1`, key)
		return err
	})
	if err != nil {
		return oops.With("operation", "delete snapshot").With("key", key).Wrap(err)
	}
	return nil
}

// Keys lists keys with the given prefix.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM campusid_snapshots WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, oops.With("operation", "list snapshot keys").Wrap(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, oops.With("operation", "scan snapshot key").Wrap(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate snapshot keys").Wrap(err)
	}
	return keys, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}
