// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/campuslink/campusid/internal/snapshot"
	"github.com/campuslink/campusid/pkg/errutil"
)

// State is the authentication state of a Manager.
type State int

// Manager states. There is no terminal state.
const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Accounts is the account store used by a Manager. *AccountStore
// implements it.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Get(ctx context.Context, id ulid.ULID) (*Account, error)
	Insert(ctx context.Context, a *Account) error
	Update(ctx context.Context, id ulid.ULID, patch ProfilePatch) (*Account, error)
}

// Manager owns the current session. It runs register, login, logout and
// profile updates against an account store and keeps the session snapshot
// in step. Operations are serialized; listeners run after the operation
// has released its lock.
type Manager struct {
	accounts  Accounts
	snapshots snapshot.Store
	keys      Keys
	now       func() time.Time
	newID     func() ulid.ULID
	logger    *slog.Logger
	metrics   *Metrics

	opMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	current *Session

	listenersMu sync.Mutex
	onChange    []func(State, *Session)
	onLogout    []func()
}

// NewManager creates a Manager in StateAuthenticating. Call Restore to
// read the persisted session and settle the state.
func NewManager(accounts Accounts, snapshots snapshot.Store, opts ...Option) (*Manager, error) {
	if accounts == nil {
		return nil, oops.Code("MANAGER_INVALID").Errorf("account store is required")
	}
	if snapshots == nil {
		return nil, oops.Code("MANAGER_INVALID").Errorf("snapshot store is required")
	}
	o := applyOptions(opts)
	return &Manager{
		accounts:  accounts,
		snapshots: snapshots,
		keys:      o.keys,
		now:       o.now,
		newID:     o.newID,
		logger:    o.logger,
		metrics:   o.metrics,
		state:     StateAuthenticating,
	}, nil
}

// event is a pending listener notification.
type event struct {
	changed bool
	logout  bool
	state   State
	session *Session
}

// Restore reads the session snapshot. A well-formed snapshot makes the
// Manager authenticated without consulting the account store; a malformed
// one is deleted and the Manager becomes unauthenticated.
func (m *Manager) Restore(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { m.metrics.observe(OpRestore, start, err) }()

	m.opMu.Lock()
	ev, err := m.restore(ctx)
	m.opMu.Unlock()

	m.fire(ev)
	return err
}

func (m *Manager) restore(ctx context.Context) (event, error) {
	m.setState(StateAuthenticating, nil)

	data, err := m.snapshots.Get(ctx, m.keys.Session)
	if errors.Is(err, snapshot.ErrNotFound) {
		return m.settle(StateUnauthenticated, nil), nil
	}
	if err != nil {
		ev := m.settle(StateUnauthenticated, nil)
		return ev, persistenceError("read session", err)
	}

	s, err := DecodeSession(data)
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger, slog.LevelWarn, "discarding malformed session snapshot", err)
		if delErr := m.snapshots.Delete(ctx, m.keys.Session); delErr != nil {
			m.logger.WarnContext(ctx, "failed to delete malformed session snapshot",
				"key", m.keys.Session, "error", delErr)
		}
		return m.settle(StateUnauthenticated, nil), nil
	}

	m.logger.DebugContext(ctx, "session restored", "account_id", s.AccountID.String())
	return m.settle(StateAuthenticated, s), nil
}

// Register creates an account from data and logs it in.
func (m *Manager) Register(ctx context.Context, data RegistrationData) (s *Session, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(OpRegister, start, err) }()

	m.opMu.Lock()
	s, ev, err := m.register(ctx, data)
	m.opMu.Unlock()

	m.fire(ev)
	return s, err
}

func (m *Manager) register(ctx context.Context, data RegistrationData) (*Session, event, error) {
	prevState, prevSession := m.snapshot()

	account, err := NewAccount(data, m.newID(), m.now())
	if err != nil {
		return nil, event{}, err
	}

	m.setState(StateAuthenticating, prevSession)

	if err := m.accounts.Insert(ctx, account); err != nil {
		m.setState(prevState, prevSession)
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, event{}, oops.Code(CodeEmailAlreadyRegistered).
				With("email", account.Email).
				Wrap(ErrEmailAlreadyRegistered)
		case errors.Is(err, ErrValidation):
			return nil, event{}, err
		default:
			errutil.LogErrorContext(ctx, m.logger, slog.LevelWarn, "account insert failed", err)
			return nil, event{}, persistenceError("register", err)
		}
	}

	s := account.Session()
	if err := m.persistSession(ctx, s); err != nil {
		m.setState(prevState, prevSession)
		return nil, event{}, err
	}

	m.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID.String(), "role", account.Role.String())
	return s.Clone(), m.settle(StateAuthenticated, s), nil
}

// Login authenticates email and secret. Unknown emails and wrong secrets
// fail with different errors.
func (m *Manager) Login(ctx context.Context, email, secret string) (s *Session, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(OpLogin, start, err) }()

	m.opMu.Lock()
	s, ev, err := m.login(ctx, email, secret)
	m.opMu.Unlock()

	m.fire(ev)
	return s, err
}

func (m *Manager) login(ctx context.Context, email, secret string) (*Session, event, error) {
	prevState, prevSession := m.snapshot()
	m.setState(StateAuthenticating, prevSession)

	account, err := m.accounts.FindByEmail(ctx, email)
	if err != nil {
		m.setState(prevState, prevSession)
		if errors.Is(err, ErrNotFound) {
			return nil, event{}, oops.Code(CodeAccountNotFound).
				With("email", email).
				Wrap(ErrAccountNotFound)
		}
		return nil, event{}, persistenceError("find account", err)
	}

	if subtle.ConstantTimeCompare([]byte(secret), []byte(account.Secret)) != 1 {
		m.setState(prevState, prevSession)
		return nil, event{}, oops.Code(CodeInvalidCredential).
			With("account_id", account.ID.String()).
			Wrap(ErrInvalidCredential)
	}

	s := account.Session()
	if err := m.persistSession(ctx, s); err != nil {
		m.setState(prevState, prevSession)
		return nil, event{}, err
	}

	m.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
	return s.Clone(), m.settle(StateAuthenticated, s), nil
}

// Logout clears the session snapshot and every other non-account snapshot
// under the key prefix. The Manager is unauthenticated afterwards even
// when clearing fails. Logging out twice is not an error.
func (m *Manager) Logout(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { m.metrics.observe(OpLogout, start, err) }()

	m.opMu.Lock()
	ev, err := m.logout(ctx)
	m.opMu.Unlock()

	m.fire(ev)
	return err
}

func (m *Manager) logout(ctx context.Context) (event, error) {
	var errs []error
	keys, err := m.snapshots.Keys(ctx, m.keys.Prefix)
	if err != nil {
		errs = append(errs, err)
		keys = []string{m.keys.Session}
	}
	for _, k := range keys {
		if k == m.keys.Accounts {
			continue
		}
		if err := m.snapshots.Delete(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}

	ev := m.settle(StateUnauthenticated, nil)
	ev.logout = true

	if len(errs) > 0 {
		err := errors.Join(errs...)
		m.logger.WarnContext(ctx, "logout left client state behind", "error", err)
		return ev, persistenceError("logout", err)
	}
	return ev, nil
}

// UpdateProfile applies patch to the current session and its account. On
// failure neither the session nor the account changes.
func (m *Manager) UpdateProfile(ctx context.Context, patch ProfilePatch) (s *Session, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(OpUpdateProfile, start, err) }()

	m.opMu.Lock()
	s, ev, err := m.updateProfile(ctx, patch)
	m.opMu.Unlock()

	m.fire(ev)
	return s, err
}

func (m *Manager) updateProfile(ctx context.Context, patch ProfilePatch) (*Session, event, error) {
	state, cur := m.snapshot()
	if state != StateAuthenticated || cur == nil {
		return nil, event{}, oops.Code(CodeNoActiveSession).Wrap(ErrNoActiveSession)
	}

	if _, _, err := patch.apply(cur.Role, cur.Profile, cur.Details); err != nil {
		return nil, event{}, err
	}

	prev, err := m.accounts.Get(ctx, cur.AccountID)
	if err != nil {
		return nil, event{}, m.translateUpdateError(cur.AccountID, err)
	}

	updated, err := m.accounts.Update(ctx, cur.AccountID, patch)
	if err != nil {
		return nil, event{}, m.translateUpdateError(cur.AccountID, err)
	}

	next := updated.Session()
	m.setState(StateAuthenticated, next)
	if err := m.persistSession(ctx, next); err != nil {
		m.setState(StateAuthenticated, cur)
		if _, rbErr := m.accounts.Update(ctx, prev.ID, fullPatch(prev.Profile, prev.Details)); rbErr != nil {
			errutil.LogErrorContext(ctx, m.logger, slog.LevelError,
				"failed to roll back account after session write failure", rbErr)
		}
		return nil, event{}, err
	}

	return next.Clone(), event{changed: true, state: StateAuthenticated, session: next.Clone()}, nil
}

func (m *Manager) translateUpdateError(id ulid.ULID, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return oops.Code(CodeAccountNotFound).
			With("account_id", id.String()).
			Wrap(ErrAccountNotFound)
	case errors.Is(err, ErrValidation):
		return err
	default:
		return persistenceError("update profile", err)
	}
}

// Current returns a copy of the current session.
func (m *Manager) Current() (*Session, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	return m.current.Clone(), true
}

// IsAuthenticated reports whether a session is active.
func (m *Manager) IsAuthenticated() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state == StateAuthenticated
}

// State returns the current state.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// OnChange registers fn to run after every completed change of state or
// session. fn receives a copy of the session, nil when unauthenticated.
func (m *Manager) OnChange(fn func(State, *Session)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// OnLogout registers fn to run after every Logout.
func (m *Manager) OnLogout(fn func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

func (m *Manager) persistSession(ctx context.Context, s *Session) error {
	data, err := EncodeSession(s)
	if err != nil {
		return persistenceError("encode session", err)
	}
	if err := m.snapshots.Put(ctx, m.keys.Session, data); err != nil {
		errutil.LogErrorContext(ctx, m.logger, slog.LevelWarn, "session snapshot write failed", err)
		return persistenceError("persist session", err)
	}
	return nil
}

func (m *Manager) snapshot() (State, *Session) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state, m.current
}

func (m *Manager) setState(state State, s *Session) {
	m.stateMu.Lock()
	m.state = state
	m.current = s
	m.stateMu.Unlock()
	m.metrics.setAuthenticated(state == StateAuthenticated)
}

// settle sets the final state of an operation and returns the matching
// notification.
func (m *Manager) settle(state State, s *Session) event {
	m.setState(state, s)
	var cp *Session
	if s != nil {
		cp = s.Clone()
	}
	return event{changed: true, state: state, session: cp}
}

func (m *Manager) fire(ev event) {
	if !ev.changed && !ev.logout {
		return
	}
	m.listenersMu.Lock()
	onChange := append([]func(State, *Session){}, m.onChange...)
	onLogout := append([]func(){}, m.onLogout...)
	m.listenersMu.Unlock()

	if ev.changed {
		for _, fn := range onChange {
			var s *Session
			if ev.session != nil {
				s = ev.session.Clone()
			}
			fn(ev.state, s)
		}
	}
	if ev.logout {
		for _, fn := range onLogout {
			fn()
		}
	}
}
