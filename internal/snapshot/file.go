// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/samber/oops"
)

const (
	fileSuffix = ".snap"
	lockSuffix = ".lock"

	lockRetryDelay = 10 * time.Millisecond
)

// FileStore keeps one file per key inside a directory. Writes go to a
// temporary file that is renamed over the target, so a reader never sees a
// partially written snapshot. Writers hold an advisory lock on a sibling
// ".lock" file, which serializes them across processes sharing dir.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, oops.Errorf("file store: dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, oops.With("dir", dir).Wrapf(err, "create snapshot dir")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

// Get reads the file for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, oops.With("key", key).Wrap(ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("key", key).Wrapf(err, "read snapshot")
	}
	return data, nil
}

// Put atomically replaces the file for key.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	return s.locked(ctx, key, func() error {
		if err := writeAtomicFile(s.path(key), value); err != nil {
			return oops.With("key", key).Wrap(err)
		}
		return nil
	})
}

// Mutate reads, transforms and rewrites the file for key while holding
// its lock file.
func (s *FileStore) Mutate(ctx context.Context, key string, fn MutateFunc) error {
	return s.locked(ctx, key, func() error {
		current, err := os.ReadFile(s.path(key))
		found := err == nil
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return oops.With("key", key).Wrapf(err, "read snapshot")
		}
		next, err := fn(current, found)
		if err != nil {
			return err
		}
		if err := writeAtomicFile(s.path(key), next); err != nil {
			return oops.With("key", key).Wrap(err)
		}
		return nil
	})
}

// Delete removes the file for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.locked(ctx, key, func() error {
		err := os.Remove(s.path(key))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return oops.With("key", key).Wrapf(err, "remove snapshot")
		}
		return nil
	})
}

// locked runs fn holding the in-process write lock and the lock file for key.
func (s *FileStore) locked(ctx context.Context, key string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	lock := flock.New(s.path(key) + lockSuffix)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return oops.With("key", key).Wrapf(err, "lock snapshot")
	}
	if !ok {
		return oops.With("key", key).Errorf("lock snapshot: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// Keys lists keys by decoding the snapshot file names in the directory.
func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, oops.With("dir", s.dir).Wrapf(err, "list snapshots")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return sortedWithPrefix(keys, prefix), nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// writeAtomicFile writes data to a temp file in the target directory, syncs
// it, and renames it over path.
func writeAtomicFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return oops.Wrapf(err, "create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return oops.Wrapf(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return oops.Wrapf(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return oops.Wrapf(err, "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return oops.Wrapf(err, "rename temp file")
	}
	return nil
}
