// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

// Package snapshot provides the durable key-value store that holds named
// snapshot blobs for campusid.
//
// A Store maps string keys to opaque byte values. The identity package keeps
// exactly two well-known keys in it (the account collection and the current
// session); any other key under the same prefix is transient client state.
//
// # Backends
//
//   - memory   - process-local map, used by tests and the "memory" driver
//   - file     - one JSON file per key, written with an atomic rename
//   - badger   - embedded LSM store (github.com/dgraph-io/badger/v3)
//   - sqlite   - single-file database (modernc.org/sqlite)
//   - postgres - shared table managed by golang-migrate (github.com/jackc/pgx/v5)
//
// Mutate is the read-modify-write primitive. Each backend makes it atomic
// against every other writer that can reach the same data: the memory map
// under its mutex, the file backend under a lock file, Badger in a
// read-write transaction, SQLite under BEGIN IMMEDIATE and Postgres under a
// transaction-scoped advisory lock.
//
// Open selects a backend from a Config.
package snapshot
