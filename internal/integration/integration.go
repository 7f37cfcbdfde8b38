// package integration tracks whether the user's LinkedIn account is linked.
//
// The machine is only meaningful with a live session: every call goes through the authenticated backend client.
package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
)

// DefaultConsentTimeout bounds how long [Machine.AwaitConsent] waits for the external consent flow.
const DefaultConsentTimeout = 5 * time.Minute

// Status is the coarse state of the LinkedIn connection.
type Status int

const (
	Unknown Status = iota
	Checking
	Connected
	Disconnected
	Failed
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Checking:
		return "checking"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Resolved reports whether a connection check has produced an answer.
func (s Status) Resolved() bool {
	return s == Connected || s == Disconnected
}

// State is a snapshot. IsConnected is true exactly when Token is non-nil.
type State struct {
	Status      Status
	IsConnected bool
	IsLoading   bool
	Error       string
	Token       *backend.LinkedInToken
}

// API is the part of the backend the machine needs.
type API interface {
	LinkedInToken(ctx context.Context) (*backend.LinkedInToken, error)
	CreateLinkedInToken(ctx context.Context) (string, error)
	RefreshLinkedInToken(ctx context.Context) (*backend.LinkedInToken, error)
	DeleteLinkedInToken(ctx context.Context) error
	LinkedInProfile(ctx context.Context) (*backend.LinkedInProfile, error)
}

// Machine tracks whether the signed-in user has linked LinkedIn. It is safe for concurrent use.
type Machine struct {
	api    API
	logger *log.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	listeners map[int]func(State)
	nextID    int
}

// New creates a Machine in the Unknown state. A nil logger discards output.
func New(api API, logger *log.Logger) *Machine {
	return &Machine{
		api:       api,
		logger:    shared.WithLogger(logger, "component", "integration"),
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

// CheckConnection asks the backend for a stored integration token. Not-found resolves to Disconnected;
// any other failure lands in Failed with a retryable message.
func (m *Machine) CheckConnection(ctx context.Context) (State, error) {
	gen := m.begin(Checking)

	tok, err := m.api.LinkedInToken(ctx)
	if err != nil {
		msg := backend.Message(err)
		m.logger.Warn("connection check failed", "err", msg)
		m.commit(gen, func(s *State) {
			s.Status = Failed
			s.IsLoading = false
			s.Error = msg
		})
		return m.State(), err
	}

	m.commit(gen, func(s *State) { *s = resolved(tok) })
	m.logger.Debug("connection checked", "connected", tok != nil)
	return m.State(), nil
}

// Connect requests the consent URL. The caller decides how to present it; the machine opens nothing.
func (m *Machine) Connect(ctx context.Context) (string, error) {
	gen := m.loading()

	authURL, err := m.api.CreateLinkedInToken(ctx)
	if err != nil {
		msg := backend.Message(err)
		m.commit(gen, func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return "", err
	}

	m.commit(gen, func(s *State) { s.IsLoading = false })
	return authURL, nil
}

// AwaitConsent waits for the external consent flow to report completion on done, then re-checks the connection.
// If ceiling elapses first the flow is abandoned and state is left as it was. A zero ceiling uses
// [DefaultConsentTimeout].
func (m *Machine) AwaitConsent(ctx context.Context, done <-chan struct{}, ceiling time.Duration) (State, error) {
	if ceiling <= 0 {
		ceiling = DefaultConsentTimeout
	}
	timer := time.NewTimer(ceiling)
	defer timer.Stop()

	select {
	case <-done:
		return m.CheckConnection(ctx)
	case <-timer.C:
		m.logger.Warn("consent flow abandoned", "after", ceiling)
		return m.State(), fmt.Errorf("%w after %s", shared.ErrFlowAbandoned, ceiling)
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// DefaultPollInterval is used by [Machine.Watch] when given a non-positive interval.
const DefaultPollInterval = 2 * time.Second

// Watch returns a channel closed once the backend reports a connected integration. It checks every interval
// until ctx ends. It does not touch the machine's state.
func (m *Machine) Watch(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tok, err := m.api.LinkedInToken(ctx)
				if err == nil && tok != nil {
					close(done)
					return
				}
			}
		}
	}()
	return done
}

// Disconnect deletes the stored integration token.
func (m *Machine) Disconnect(ctx context.Context) error {
	gen := m.loading()

	if err := m.api.DeleteLinkedInToken(ctx); err != nil {
		msg := backend.Message(err)
		m.commit(gen, func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return err
	}

	m.commit(gen, func(s *State) { *s = resolved(nil) })
	m.logger.Info("integration disconnected")
	return nil
}

// RefreshToken asks the backend to refresh the integration token.
func (m *Machine) RefreshToken(ctx context.Context) error {
	gen := m.loading()

	tok, err := m.api.RefreshLinkedInToken(ctx)
	if err != nil {
		msg := backend.Message(err)
		m.commit(gen, func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return err
	}

	m.commit(gen, func(s *State) { *s = resolved(tok) })
	return nil
}

// Profile fetches the connected member's profile. It does not change state.
func (m *Machine) Profile(ctx context.Context) (*backend.LinkedInProfile, error) {
	return m.api.LinkedInProfile(ctx)
}

func (m *Machine) ClearError() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.commit(gen, func(s *State) { s.Error = "" })
}

// Reset forgets everything, returning to Unknown. Used when the session ends.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()
	m.commit(gen, func(s *State) { *s = State{} })
}

func resolved(tok *backend.LinkedInToken) State {
	if tok == nil {
		return State{Status: Disconnected}
	}
	return State{Status: Connected, IsConnected: true, Token: tok}
}

// begin starts a new generation entering status, keeping the current token until the answer arrives.
func (m *Machine) begin(status Status) uint64 {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.commit(gen, func(s *State) {
		s.Status = status
		s.IsLoading = true
		s.Error = ""
	})
	return gen
}

// loading marks a call in flight without changing status.
func (m *Machine) loading() uint64 {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.commit(gen, func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})
	return gen
}

func (m *Machine) commit(gen uint64, fn func(*State)) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	fn(&m.state)
	snapshot := m.state
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return true
}
