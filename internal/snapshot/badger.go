// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/samber/oops"
)

// BadgerConfig tunes the embedded Badger database.
type BadgerConfig struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string
	// InMemory runs Badger without touching disk.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// GCInterval is the value-log GC period. Zero disables GC.
	GCInterval time.Duration
	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns the defaults used by the "badger" driver.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:            dir,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// BadgerStore implements Store on top of Badger.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	// mutateMu serializes Mutate. Badger locks its directory, so competing
	// writers can only live in this process.
	mutateMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewBadgerStore opens a Badger database.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, oops.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithValueLogFileSize(16 << 20).
		WithLogger(&badgerLogger{logger: logger})
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, oops.With("dir", cfg.Dir).Wrapf(err, "badger: open db")
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneCh)
	}

	return s, nil
}

// Get reads key in a read-only transaction.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, oops.With("key", key).Wrap(ErrNotFound)
	case errors.Is(err, badger.ErrDBClosed):
		return nil, ErrClosed
	case err != nil:
		return nil, oops.With("key", key).Wrapf(err, "badger: get")
	}
	return value, nil
}

// Put writes key, retrying on transaction conflicts.
func (s *BadgerStore) Put(ctx context.Context, key string, value []byte) error {
	err := withRetry(ctx, isBadgerConflict, func(context.Context) error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(key), value)
		})
	})
	if err != nil {
		return oops.With("key", key).Wrapf(err, "badger: put")
	}
	return nil
}

// Mutate reads and rewrites key in one read-write transaction. A concurrent
// Put or Delete of key makes the commit fail with ErrConflict, and the whole
// read-transform-write cycle is retried.
func (s *BadgerStore) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	err := withRetry(ctx, isBadgerConflict, func(context.Context) error {
		return s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			found := true
			item, err := txn.Get([]byte(key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				found = false
			case err != nil:
				return err
			default:
				if current, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}
			next, err := fn(current, found)
			if err != nil {
				return &mutateAbort{err: err}
			}
			return txn.Set([]byte(key), next)
		})
	})
	var abort *mutateAbort
	if errors.As(err, &abort) {
		return abort.err
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return oops.With("key", key).Wrapf(err, "badger: mutate")
	}
	return nil
}

// Delete removes key, retrying on transaction conflicts.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	err := withRetry(ctx, isBadgerConflict, func(context.Context) error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		})
	})
	if err != nil {
		return oops.With("key", key).Wrapf(err, "badger: delete")
	}
	return nil
}

// Keys iterates keys with the given prefix without fetching values.
func (s *BadgerStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, oops.With("prefix", prefix).Wrapf(err, "badger: scan")
	}
	return sortedWithPrefix(keys, prefix), nil
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	if err := s.db.Close(); err != nil {
		return oops.Wrapf(err, "badger: close")
	}
	return nil
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for {
				// RunValueLogGC returns nil while it keeps reclaiming space.
				if err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn("badger value log gc failed", "error", err)
					}
					break
				}
			}
		}
	}
}

func isBadgerConflict(err error) bool {
	return errors.Is(err, badger.ErrConflict)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
