// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract exercises the behavior every backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "campusid.session")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get returns value", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "campusid.accounts", []byte(`[{"id":"1"}]`)))

		got, err := s.Get(ctx, "campusid.accounts")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[{"id":"1"}]`), got)
	})

	t.Run("put replaces value", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("one")))
		require.NoError(t, s.Put(ctx, "k", []byte("two")))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})

	t.Run("delete removes key and is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("v")))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("keys filters by prefix in order", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"campusid.session", "other.x", "campusid.accounts", "campusid.draft/apply"} {
			require.NoError(t, s.Put(ctx, k, []byte("v")))
		}

		keys, err := s.Keys(ctx, "campusid.")
		require.NoError(t, err)
		assert.Equal(t, []string{"campusid.accounts", "campusid.draft/apply", "campusid.session"}, keys)

		all, err := s.Keys(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("mutate creates a missing key", func(t *testing.T) {
		s := newStore(t)
		err := s.Mutate(ctx, "campusid.accounts", func(current []byte, found bool) ([]byte, error) {
			assert.False(t, found)
			assert.Empty(t, current)
			return []byte(`[]`), nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "campusid.accounts")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[]`), got)
	})

	t.Run("mutate sees the current value", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("one")))
		err := s.Mutate(ctx, "k", func(current []byte, found bool) ([]byte, error) {
			assert.True(t, found)
			return append(current, []byte(",two")...), nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("one,two"), got)
	})

	t.Run("mutate error aborts without writing", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("kept")))
		errReject := errors.New("rejected")

		err := s.Mutate(ctx, "k", func([]byte, bool) ([]byte, error) {
			return nil, errReject
		})
		assert.Equal(t, errReject, err, "the callback error is returned unchanged")

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("kept"), got)
	})

	t.Run("concurrent mutates lose no updates", func(t *testing.T) {
		s := newStore(t)
		assertCounter(t, []Store{s}, 20)
	})
}

// assertCounter increments one counter key through Mutate from many
// goroutines spread over stores and checks that every increment landed.
func assertCounter(t *testing.T, stores []Store, increments int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < increments; i++ {
		wg.Add(1)
		go func(s Store) {
			defer wg.Done()
			err := s.Mutate(ctx, "counter", func(current []byte, found bool) ([]byte, error) {
				n := 0
				if found {
					var err error
					if n, err = strconv.Atoi(string(current)); err != nil {
						return nil, err
					}
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
			assert.NoError(t, err)
		}(stores[i%len(stores)])
	}
	wg.Wait()

	got, err := stores[0].Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(increments), string(got))
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s := NewMemoryStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(ctx, "k", nil), ErrClosed)
	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, s.Mutate(ctx, "k", func([]byte, bool) ([]byte, error) { return nil, nil }), ErrClosed)
	_, err = s.Keys(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "campusid.session", []byte(`{"email":"a@x.edu"}`)))
	require.NoError(t, s.Close())

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "campusid.session")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@x.edu"}`, string(got))
}

func TestFileStore_IgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, writeAtomicFile(filepath.Join(dir, "notes.txt"), []byte("x")))
	require.NoError(t, s.Put(ctx, "a", []byte("v")))

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestFileStore_MutateAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	stores := make([]Store, 2)
	for i := range stores {
		s, err := NewFileStore(dir)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		stores[i] = s
	}

	assertCounter(t, stores, 20)

	keys, err := stores[1].Keys(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, keys, "lock files are not listed as keys")
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}

func TestBadgerStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewBadgerStore(BadgerConfig{InMemory: true}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultBadgerConfig(t.TempDir())

	s, err := NewBadgerStore(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "campusid.accounts", []byte(`[]`)))
	require.NoError(t, s.Close())

	reopened, err := NewBadgerStore(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "campusid.accounts")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)
}

func TestNewBadgerStore_RequiresDir(t *testing.T) {
	_, err := NewBadgerStore(BadgerConfig{}, nil)
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "snap.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_MutateAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	stores := make([]Store, 2)
	for i := range stores {
		s, err := NewSQLiteStore(context.Background(), path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		stores[i] = s
	}

	assertCounter(t, stores, 20)
}

func TestSQLiteStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{DriverMemory, DriverFile, DriverBadger, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			s, err := Open(ctx, Config{Driver: driver, Dir: t.TempDir()}, nil)
			require.NoError(t, err)
			defer func() { _ = s.Close() }()

			require.NoError(t, s.Put(ctx, "k", []byte("v")))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)
		})
	}

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, Config{Driver: "redis"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis")
	})
}
