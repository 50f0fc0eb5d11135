// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslink/campusid/internal/identity"
	"github.com/campuslink/campusid/internal/snapshot"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ptr[T any](v T) *T { return &v }

func studentData(email string) identity.RegistrationData {
	return identity.RegistrationData{
		Email:  email,
		Secret: "pw123456",
		Role:   identity.RoleStudent,
		Profile: identity.Profile{
			FirstName: "Asha",
			LastName:  "Rao",
		},
		Student: &identity.StudentDetails{
			RollNumber:     "A12345678901",
			Department:     "Computer Science",
			GraduationYear: 2027,
		},
	}
}

func facultyData(email string) identity.RegistrationData {
	return identity.RegistrationData{
		Email:  email,
		Secret: "lecture99",
		Role:   identity.RoleFaculty,
		Profile: identity.Profile{
			FirstName: "Ravi",
			LastName:  "Menon",
			Skills:    []string{"Databases"},
		},
		Faculty: &identity.FacultyDetails{
			EmployeeID:         "EMP-042",
			Designation:        "Associate Professor",
			DateOfJoining:      "2015-07-01",
			Qualification:      "PhD",
			TotalExperience:    12,
			TeachingExperience: 9,
			IndustryExperience: 3,
		},
	}
}

// errInjected is returned by failingStore when a failure is armed.
var errInjected = errors.New("injected storage failure")

// failingStore wraps a snapshot.Store and fails writes to armed keys.
// Puts counts successful Put and Mutate calls per key.
type failingStore struct {
	snapshot.Store

	mu        sync.Mutex
	failPut   map[string]bool
	failGet   map[string]bool
	failKeys  bool
	putCounts map[string]int
}

func newFailingStore() *failingStore {
	return &failingStore{
		Store:     snapshot.NewMemoryStore(),
		failPut:   map[string]bool{},
		failGet:   map[string]bool{},
		putCounts: map[string]int{},
	}
}

func (s *failingStore) FailPut(key string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut[key] = fail
}

func (s *failingStore) FailGet(key string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet[key] = fail
}

func (s *failingStore) Puts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCounts[key]
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failGet[key]
	s.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failPut[key]
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	s.mu.Lock()
	s.putCounts[key]++
	s.mu.Unlock()
	return s.Store.Put(ctx, key, value)
}

func (s *failingStore) Mutate(ctx context.Context, key string, fn snapshot.MutateFunc) error {
	s.mu.Lock()
	fail := s.failPut[key]
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	if err := s.Store.Mutate(ctx, key, fn); err != nil {
		return err
	}
	s.mu.Lock()
	s.putCounts[key]++
	s.mu.Unlock()
	return nil
}

func (s *failingStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	fail := s.failKeys
	s.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return s.Store.Keys(ctx, prefix)
}

var testKeys = identity.KeysWithPrefix(identity.DefaultKeyPrefix)

// newManager opens an account store and a restored Manager over snaps.
func newManager(t *testing.T, snaps snapshot.Store, opts ...identity.Option) (*identity.Manager, *identity.AccountStore) {
	t.Helper()
	ctx := context.Background()
	opts = append([]identity.Option{identity.WithClock(fixedClock)}, opts...)

	accounts, err := identity.OpenAccountStore(ctx, snaps, opts...)
	require.NoError(t, err)

	mgr, err := identity.NewManager(accounts, snaps, opts...)
	require.NoError(t, err)
	require.NoError(t, mgr.Restore(ctx))
	return mgr, accounts
}
