// package session owns authentication status and the current user profile.
//
// The [Machine] moves between Unauthenticated, Checking, Authenticated and Failed. The credential itself lives in a
// [tokenstore.Store]; the machine writes it on login and purges it on logout or when the backend rejects it.
// [Capture] lifts a credential delivered on the address by the Google login redirect.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

// ErrSuperseded is returned when a newer transition (a logout, another login) overtook an in-flight one.
var ErrSuperseded = errors.New("session: superseded by a newer transition")

// Status is the coarse state of the session.
type Status int

const (
	Unauthenticated Status = iota
	Checking
	Authenticated
	Failed
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is a snapshot handed to callers and listeners.
type State struct {
	Status          Status
	User            *backend.User
	IsLoading       bool
	IsAuthenticated bool
	Error           string
}

// API is the part of the backend the session needs.
type API interface {
	Login(ctx context.Context, creds backend.LoginRequest) (*backend.AuthResponse, error)
	Signup(ctx context.Context, data backend.SignupRequest) (*backend.AuthResponse, error)
	MeWithToken(ctx context.Context, token string) (*backend.User, error)
	GoogleLoginURL(redirectPath, origin string) string
}

// Machine is safe for concurrent use. Listeners run outside the lock, after each transition.
type Machine struct {
	api    API
	store  tokenstore.Store
	logger *log.Logger

	mu          sync.Mutex
	state       State
	gen         uint64
	initialized bool
	listeners   map[int]func(State)
	nextID      int
}

// New creates a Machine in Unauthenticated. Call [Machine.Init] once to validate a stored credential.
func New(api API, store tokenstore.Store, logger *log.Logger) *Machine {
	return &Machine{
		api:       api,
		store:     store,
		logger:    shared.WithLogger(logger, "component", "session"),
		listeners: make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn for every transition and returns a function that removes it.
func (m *Machine) OnChange(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Init validates a stored credential once per load. Later calls are no-ops.
//
// With no credential the machine settles in Unauthenticated. A credential the backend rejects with a 401 is purged;
// any other failure keeps it, settles in Failed and returns the error.
func (m *Machine) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.mu.Unlock()

	token, err := m.store.Get()
	if err != nil {
		m.logger.Warn("credential unreadable", "err", err)
		m.commit(m.bump(), func(s *State) { *s = State{Status: Unauthenticated, Error: err.Error()} })
		return fmt.Errorf("%w: %v", shared.ErrTokenStore, err)
	}
	if token == "" {
		m.commit(m.bump(), func(s *State) { *s = State{Status: Unauthenticated} })
		return nil
	}

	gen, _ := m.begin(func(Status) error { return nil })
	user, err := m.api.MeWithToken(ctx, token)
	switch {
	case err == nil:
	case backend.IsUnauthorized(err):
		msg := backend.Message(err)
		m.purge(token)
		m.logger.Info("stored credential rejected", "err", msg)
		m.commit(gen, func(s *State) { *s = State{Status: Unauthenticated, Error: msg} })
		return nil
	default:
		msg := backend.Message(err)
		m.logger.Warn("session check failed", "err", msg)
		m.commit(gen, func(s *State) { *s = State{Status: Failed, Error: msg} })
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if !m.commit(gen, func(s *State) { *s = authenticated(user) }) {
		return ErrSuperseded
	}
	m.logger.Info("session restored", "user", user.Email)
	return nil
}

// Login exchanges credentials for a session. The credential and profile are published together.
func (m *Machine) Login(ctx context.Context, creds backend.LoginRequest) error {
	return m.authenticate(ctx, "login", func() (*backend.AuthResponse, error) { return m.api.Login(ctx, creds) })
}

// Signup creates an account and signs in with it.
func (m *Machine) Signup(ctx context.Context, data backend.SignupRequest) error {
	return m.authenticate(ctx, "signup", func() (*backend.AuthResponse, error) { return m.api.Signup(ctx, data) })
}

func (m *Machine) authenticate(ctx context.Context, op string, call func() (*backend.AuthResponse, error)) error {
	gen, err := m.begin(func(current Status) error {
		switch current {
		case Checking:
			return shared.ErrBusy
		case Authenticated:
			return fmt.Errorf("%w: already signed in, log out first", shared.ErrInvalidInput)
		}
		return nil
	})
	if err != nil {
		return err
	}

	resp, err := call()
	if err != nil {
		msg := backend.Message(err)
		m.logger.Warn(op+" failed", "err", msg)
		m.commit(gen, func(s *State) { *s = State{Status: Failed, Error: msg} })
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	var storeErr error
	applied := m.commit(gen, func(s *State) {
		if storeErr = m.store.Set(resp.AccessToken); storeErr != nil {
			*s = State{Status: Failed, Error: storeErr.Error()}
			return
		}
		user := resp.User
		*s = authenticated(&user)
	})

	switch {
	case !applied:
		return ErrSuperseded
	case storeErr != nil:
		return fmt.Errorf("%w: %v", shared.ErrTokenStore, storeErr)
	}
	m.logger.Info(op+" succeeded", "user", resp.User.Email)
	return nil
}

// Logout purges the credential before any listener runs, then settles in Unauthenticated.
func (m *Machine) Logout() error {
	m.mu.Lock()
	m.gen++
	err := m.store.Clear()
	m.state = State{Status: Unauthenticated}
	snapshot, listeners := m.state, m.snapshotListeners()
	m.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTokenStore, err)
	}
	m.logger.Info("logged out")
	return nil
}

// RefreshUser re-fetches the profile. A 401-class answer ends the session; other failures keep it and record the error.
func (m *Machine) RefreshUser(ctx context.Context) error {
	token, err := m.store.Get()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTokenStore, err)
	}
	if token == "" {
		m.commit(m.bump(), func(s *State) { *s = State{Status: Unauthenticated, Error: shared.ErrNotAuthenticated.Error()} })
		return shared.ErrNotAuthenticated
	}

	gen := m.loading()
	user, err := m.api.MeWithToken(ctx, token)
	switch {
	case err == nil:
		if !m.commit(gen, func(s *State) { *s = authenticated(user) }) {
			return ErrSuperseded
		}
		return nil

	case backend.IsUnauthorized(err):
		m.purge(token)
		msg := backend.Message(err)
		m.commit(gen, func(s *State) { *s = State{Status: Unauthenticated, Error: msg} })
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)

	default:
		msg := backend.Message(err)
		m.commit(gen, func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return err
	}
}

// ClearError drops the recorded error without changing status.
func (m *Machine) ClearError() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.commit(gen, func(s *State) { s.Error = "" })
}

// LoginWithGoogle hands the backend's Google login address to open. The backend runs the handshake and
// redirects back to origin+redirectPath with the credential on the query string.
func (m *Machine) LoginWithGoogle(redirectPath, origin string, open shared.Opener) error {
	m.ClearError()

	target := m.api.GoogleLoginURL(redirectPath, origin)
	m.logger.Debug("starting google login", "redirect", redirectPath, "origin", origin)
	if err := open(target); err != nil {
		m.mu.Lock()
		gen := m.gen
		m.mu.Unlock()
		m.commit(gen, func(s *State) { s.Error = err.Error() })
		return err
	}
	return nil
}

func authenticated(u *backend.User) State {
	return State{Status: Authenticated, User: u, IsAuthenticated: true}
}

// bump starts a new generation without touching state.
func (m *Machine) bump() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen
}

// begin checks the current status with allow and, if permitted, enters Checking under the same lock.
func (m *Machine) begin(allow func(Status) error) (uint64, error) {
	m.mu.Lock()
	if err := allow(m.state.Status); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	m.gen++
	gen := m.gen
	m.state = State{Status: Checking, IsLoading: true}
	snapshot, listeners := m.state, m.snapshotListeners()
	m.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return gen, nil
}

// loading begins a transition that keeps the current status.
func (m *Machine) loading() uint64 {
	gen := m.bump()
	m.commit(gen, func(s *State) { s.IsLoading = true })
	return gen
}

// commit applies fn if gen is still current and notifies listeners. It reports whether fn ran.
func (m *Machine) commit(gen uint64, fn func(*State)) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.logger.Debug("dropping stale transition", "gen", gen, "current", m.gen)
		return false
	}
	fn(&m.state)
	snapshot, listeners := m.state, m.snapshotListeners()
	m.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return true
}

func (m *Machine) snapshotListeners() []func(State) {
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

// purge removes token from the store unless it has since been replaced.
func (m *Machine) purge(token string) {
	if _, err := m.store.ClearIf(token); err != nil {
		m.logger.Warn("failed to purge credential", "err", err)
	}
}
