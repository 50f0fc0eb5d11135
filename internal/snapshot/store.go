// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package snapshot

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("snapshot not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("snapshot store closed")

// MutateFunc computes the next value of a key from its current value.
type MutateFunc func(current []byte, found bool) ([]byte, error)

// Store persists named snapshot blobs.
//
// Implementations must be safe for concurrent use. Put must not return until
// the value is durable for the backend's notion of durability.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Mutate atomically replaces the value under key with the result of fn.
	// fn receives the current value and whether the key exists. No other
	// writer, in this process or another one sharing the backend, can change
	// key between the read and the write. fn may run more than once when the
	// backend retries a conflict. An error from fn aborts without writing and
	// is returned unchanged.
	Mutate(ctx context.Context, key string, fn MutateFunc) error

	// Keys lists the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// mutateAbort carries an error returned by a MutateFunc out of a backend
// transaction so it is neither retried nor wrapped.
type mutateAbort struct {
	err error
}

func (a *mutateAbort) Error() string { return a.err.Error() }

// sortedWithPrefix filters keys by prefix and sorts the result.
func sortedWithPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
