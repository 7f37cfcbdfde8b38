// Package orchestrator wires the session, capture, integration and guard units for one load of the client.
//
// Boot runs the capture first and the session check second. From then on every state change of the session or the
// integration re-runs the guard against the current view.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/integration"
	"github.com/desertthunder/postsiva/internal/session"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

// Config holds the shared dependencies an [Orchestrator] wires together.
type Config struct {
	Client *backend.Client
	Store  tokenstore.Store
	// Start is the path the router begins on.
	Start         string
	FallbackDelay time.Duration
	Logger        *log.Logger
}

// Orchestrator owns one session, integration machine, capture unit and guard for a single run.
type Orchestrator struct {
	Session     *session.Machine
	Capture     *session.Capture
	Integration *integration.Machine
	Guard       *guard.Guard
	Router      *Router

	store  tokenstore.Store
	logger *log.Logger

	mu       sync.Mutex
	ctx      context.Context
	booted   bool
	boot     BootResult
	lastAuth bool
	unsubs   []func()
}

// BootResult reports what a load found.
type BootResult struct {
	Capture  session.CaptureResult
	Session  session.State
	Decision guard.Decision
}

// New wires the components and subscribes the guard to their transitions.
func New(cfg Config) *Orchestrator {
	logger := shared.WithLogger(cfg.Logger, "component", "orchestrator")
	start := cfg.Start
	if start == "" {
		start = guard.HomePath
	}

	o := &Orchestrator{
		Session:     session.New(cfg.Client, cfg.Store, cfg.Logger),
		Capture:     session.NewCapture(cfg.Store, cfg.Logger),
		Integration: integration.New(cfg.Client, cfg.Logger),
		Router:      NewRouter(start),
		store:       cfg.Store,
		logger:      logger,
		ctx:         context.Background(),
	}
	o.Guard = guard.New(guard.Config{
		Store:         cfg.Store,
		Session:       o.Session,
		Integration:   o.Integration,
		Capture:       o.Capture,
		Navigator:     o.Router,
		FallbackDelay: cfg.FallbackDelay,
		Logger:        cfg.Logger,
	})
	if v, ok := guard.Lookup(start); ok {
		o.Guard.Navigate(v)
	}

	o.Router.setFollow(o.follow)
	o.unsubs = append(o.unsubs,
		o.Session.OnChange(o.onSession),
		o.Integration.OnChange(func(integration.State) { o.Guard.Evaluate(o.context()) }),
	)
	return o
}

// Boot runs once per load: capture from loc (nil skips it), then validate the stored credential, then guard the
// current view. Later calls return the first result.
func (o *Orchestrator) Boot(ctx context.Context, loc session.Location) (BootResult, error) {
	o.mu.Lock()
	if o.booted {
		res := o.boot
		o.mu.Unlock()
		return res, nil
	}
	o.booted = true
	o.ctx = ctx
	o.mu.Unlock()

	var res BootResult
	var captureErr error
	if loc != nil {
		res.Capture, captureErr = o.Capture.Run(loc)
		if captureErr != nil {
			o.logger.Warn("capture incomplete", "err", captureErr)
		}
	}

	if err := o.Session.Init(ctx); err != nil {
		res.Session = o.Session.State()
		o.mu.Lock()
		o.boot = res
		o.mu.Unlock()
		return res, err
	}
	res.Session = o.Session.State()
	res.Decision = o.Guard.Evaluate(ctx)

	o.mu.Lock()
	o.boot = res
	o.mu.Unlock()
	return res, captureErr
}

// Visit navigates to view and guards it. When a listener redirected away while the guard was still running, the
// decision reports where the router ended up.
func (o *Orchestrator) Visit(ctx context.Context, view guard.View) guard.Decision {
	o.Router.setCurrent(view.Path)
	o.Guard.Navigate(view)
	d := o.Guard.Evaluate(ctx)
	if cur := o.Router.Current(); cur != view.Path && d.Action != guard.Redirect {
		return guard.Decision{Action: guard.Redirected, Target: cur, Reason: "redirected while guarding " + view.Path}
	}
	return d
}

// Login authenticates and lands on the dashboard, where the guard takes over.
func (o *Orchestrator) Login(ctx context.Context, creds backend.LoginRequest) (guard.Decision, error) {
	if err := o.Session.Login(ctx, creds); err != nil {
		return guard.Decision{}, err
	}
	return o.Visit(ctx, guard.Home), nil
}

// Signup creates an account, then lands on the dashboard like [Orchestrator.Login].
func (o *Orchestrator) Signup(ctx context.Context, data backend.SignupRequest) (guard.Decision, error) {
	if err := o.Session.Signup(ctx, data); err != nil {
		return guard.Decision{}, err
	}
	return o.Visit(ctx, guard.Home), nil
}

// Logout ends the session. The integration state belongs to the session and is forgotten with it.
func (o *Orchestrator) Logout() error {
	return o.Session.Logout()
}

// Close detaches every listener and cancels a pending fallback.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	unsubs := o.unsubs
	o.unsubs = nil
	o.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
	o.Guard.Stop()
}

func (o *Orchestrator) onSession(s session.State) {
	o.mu.Lock()
	ended := o.lastAuth && !s.IsAuthenticated && !s.IsLoading
	if !s.IsLoading {
		o.lastAuth = s.IsAuthenticated
	}
	o.mu.Unlock()

	if ended {
		o.logger.Debug("session ended, resetting integration")
		o.Integration.Reset()
	}
	o.Guard.Evaluate(o.context())
}

func (o *Orchestrator) follow(path string) {
	v, ok := guard.Lookup(path)
	if !ok {
		o.logger.Warn("navigated to unknown view", "path", path)
		return
	}
	o.Guard.Navigate(v)
	o.Guard.Evaluate(o.context())
}

func (o *Orchestrator) context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ctx
}
