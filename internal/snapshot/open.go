// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/samber/oops"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Drivers lists every accepted driver name.
var Drivers = []string{DriverMemory, DriverFile, DriverBadger, DriverSQLite, DriverPostgres}

// Config selects and configures a backend.
type Config struct {
	// Driver is one of the Driver* constants.
	Driver string
	// Dir is the data directory for file, badger and sqlite.
	Dir string
	// DSN is the Postgres connection URL.
	DSN string
}

// Open creates the Store described by cfg. For postgres, pending schema
// migrations are applied before the pool is opened.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(filepath.Join(cfg.Dir, "snapshots"))
	case DriverBadger:
		return NewBadgerStore(DefaultBadgerConfig(filepath.Join(cfg.Dir, "badger")), logger)
	case DriverSQLite:
		return NewSQLiteStore(ctx, filepath.Join(cfg.Dir, "campusid.db"))
	case DriverPostgres:
		if err := migrateUp(cfg.DSN); err != nil {
			return nil, err
		}
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, oops.Code("SNAPSHOT_DRIVER_UNKNOWN").
			With("driver", cfg.Driver).
			Errorf("unknown snapshot driver %q", cfg.Driver)
	}
}

func migrateUp(dsn string) (err error) {
	m, err := NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}
