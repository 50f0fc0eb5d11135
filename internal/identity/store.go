// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/campuslink/campusid/internal/snapshot"
)

// DefaultKeyPrefix namespaces the snapshot keys written by this package.
const DefaultKeyPrefix = "campusid."

// Keys names the snapshots in the snapshot store.
type Keys struct {
	Prefix   string
	Accounts string
	Session  string
}

// KeysWithPrefix derives the snapshot keys for prefix.
func KeysWithPrefix(prefix string) Keys {
	return Keys{
		Prefix:   prefix,
		Accounts: prefix + "accounts",
		Session:  prefix + "session",
	}
}

// Option configures an AccountStore or a Manager.
type Option func(*options)

type options struct {
	keys    Keys
	now     func() time.Time
	newID   func() ulid.ULID
	logger  *slog.Logger
	metrics *Metrics
}

func defaultOptions() options {
	return options{
		keys:   KeysWithPrefix(DefaultKeyPrefix),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  ulid.Make,
		logger: slog.Default(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithKeyPrefix sets the snapshot key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keys = KeysWithPrefix(prefix) }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator replaces the account ID source.
func WithIDGenerator(newID func() ulid.ULID) Option {
	return func(o *options) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithMetrics records Manager operations in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// AccountStore is the durable account collection. The whole collection is
// written back as one snapshot on every change. Changes go through
// snapshot.Store.Mutate, so the duplicate check always runs against the
// latest persisted collection, including accounts written by other
// processes sharing the same snapshot store. Reads refresh the in-memory
// copy from the snapshot first.
type AccountStore struct {
	mu        sync.Mutex
	snapshots snapshot.Store
	key       string
	now       func() time.Time
	logger    *slog.Logger

	idx accountIndex
}

// OpenAccountStore loads the accounts snapshot from snapshots. A missing
// snapshot yields an empty store; a corrupt one is an error.
func OpenAccountStore(ctx context.Context, snapshots snapshot.Store, opts ...Option) (*AccountStore, error) {
	if snapshots == nil {
		return nil, oops.Code("ACCOUNT_STORE_INVALID").Errorf("snapshot store is required")
	}
	o := applyOptions(opts)
	s := &AccountStore{
		snapshots: snapshots,
		key:       o.keys.Accounts,
		now:       o.now,
		logger:    o.logger,
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory collection with the persisted snapshot.
func (s *AccountStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "accounts loaded", "count", len(s.idx.accounts))
	return nil
}

// refresh re-reads the snapshot. On failure the in-memory copy is left as
// it was. Callers hold s.mu.
func (s *AccountStore) refresh(ctx context.Context) error {
	data, err := s.snapshots.Get(ctx, s.key)
	found := true
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		found = false
	case err != nil:
		return persistenceError("load accounts", err)
	}
	idx, err := parseAccounts(data, found)
	if err != nil {
		return err
	}
	s.idx = idx
	return nil
}

// FindByEmail looks an account up case-insensitively. It returns a copy.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	i, ok := s.idx.byEmail[emailKey(email)]
	if !ok {
		return nil, oops.Code(CodeNotFound).With("email", email).Wrap(ErrNotFound)
	}
	return s.idx.accounts[i].Clone(), nil
}

// Get looks an account up by id. It returns a copy.
func (s *AccountStore) Get(ctx context.Context, id ulid.ULID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	i, ok := s.idx.byID[id]
	if !ok {
		return nil, accountNotFound(id)
	}
	return s.idx.accounts[i].Clone(), nil
}

// Insert validates a and appends it. The duplicate check and the append
// run inside one snapshot.Store.Mutate against the latest persisted
// collection; nothing changes when the write fails.
func (s *AccountStore) Insert(ctx context.Context, a *Account) error {
	if a == nil {
		return validationError("account", "account is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, func(idx accountIndex) (accountIndex, error) {
		if _, dup := idx.byEmail[emailKey(a.Email)]; dup {
			return idx, oops.Code(CodeDuplicateEmail).With("email", a.Email).Wrap(ErrDuplicateEmail)
		}
		if _, dup := idx.byID[a.ID]; dup {
			return idx, validationError("id", "account id already exists")
		}
		return idx.with(a.Clone()), nil
	})
}

// Update applies patch to the account with id and returns the updated copy.
// Only supplied fields change. The patch is validated against the
// account's role and the merged result against the role schema.
func (s *AccountStore) Update(ctx context.Context, id ulid.ULID, patch ProfilePatch) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *Account
	err := s.mutate(ctx, func(idx accountIndex) (accountIndex, error) {
		i, ok := idx.byID[id]
		if !ok {
			return idx, accountNotFound(id)
		}
		prev := idx.accounts[i]

		profile, details, err := patch.apply(prev.Role, prev.Profile, prev.Details)
		if err != nil {
			return idx, err
		}

		next := prev.Clone()
		next.Profile = profile
		next.Details = details
		next.UpdatedAt = s.now()

		updated = next
		return idx.replace(i, next), nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// All returns copies of every account in insertion order.
func (s *AccountStore) All(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	out := make([]Account, len(s.idx.accounts))
	for i, a := range s.idx.accounts {
		out[i] = *a.Clone()
	}
	return out, nil
}

// Count returns the number of accounts. When the snapshot cannot be read
// it reports the last collection it saw.
func (s *AccountStore) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "accounts refresh failed", "key", s.key, "error", err)
	}
	return len(s.idx.accounts)
}

// mutate runs change against the persisted collection inside
// snapshot.Store.Mutate and adopts the written collection on success.
// Errors returned by change pass through untouched; backend failures
// become PERSISTENCE_FAILED. Callers hold s.mu.
func (s *AccountStore) mutate(ctx context.Context, change func(accountIndex) (accountIndex, error)) error {
	var (
		written  accountIndex
		rejected error
	)
	err := s.snapshots.Mutate(ctx, s.key, func(current []byte, found bool) ([]byte, error) {
		rejected = nil
		idx, err := parseAccounts(current, found)
		if err == nil {
			idx, err = change(idx)
		}
		if err != nil {
			rejected = err
			return nil, err
		}
		data, err := encodeAccounts(idx.accounts)
		if err != nil {
			rejected = persistenceError("encode accounts", err)
			return nil, rejected
		}
		written = idx
		return data, nil
	})
	if rejected != nil {
		return rejected
	}
	if err != nil {
		s.logger.WarnContext(ctx, "accounts snapshot write failed",
			"key", s.key, "error", err)
		return persistenceError("persist accounts", err)
	}
	s.idx = written
	return nil
}

func accountNotFound(id ulid.ULID) error {
	return oops.Code(CodeNotFound).With("account_id", id.String()).Wrap(ErrNotFound)
}

// accountIndex is an immutable view of the collection with lookups by
// normalized email and by id.
type accountIndex struct {
	accounts []*Account
	byEmail  map[string]int
	byID     map[ulid.ULID]int
}

func newAccountIndex(accounts []*Account) accountIndex {
	idx := accountIndex{
		accounts: accounts,
		byEmail:  make(map[string]int, len(accounts)),
		byID:     make(map[ulid.ULID]int, len(accounts)),
	}
	for i, a := range accounts {
		idx.byEmail[emailKey(a.Email)] = i
		idx.byID[a.ID] = i
	}
	return idx
}

// parseAccounts decodes a persisted collection. A missing snapshot is an
// empty collection; duplicate emails or ids make it corrupt.
func parseAccounts(data []byte, found bool) (accountIndex, error) {
	if !found {
		return newAccountIndex(nil), nil
	}
	accounts, err := decodeAccounts(data)
	if err != nil {
		return accountIndex{}, err
	}
	idx := newAccountIndex(accounts)
	if len(idx.byEmail) != len(accounts) || len(idx.byID) != len(accounts) {
		return accountIndex{}, oops.Code(CodeCorruptSnapshot).
			With("snapshot", "accounts").
			Wrapf(ErrCorruptSnapshot, "duplicate email or id in accounts snapshot")
	}
	return idx, nil
}

// with returns a new index with a appended.
func (idx accountIndex) with(a *Account) accountIndex {
	accounts := make([]*Account, len(idx.accounts), len(idx.accounts)+1)
	copy(accounts, idx.accounts)
	return newAccountIndex(append(accounts, a))
}

// replace returns a new index with the account at i swapped for a.
func (idx accountIndex) replace(i int, a *Account) accountIndex {
	accounts := make([]*Account, len(idx.accounts))
	copy(accounts, idx.accounts)
	accounts[i] = a
	return newAccountIndex(accounts)
}
