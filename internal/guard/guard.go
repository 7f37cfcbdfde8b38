// Package guard decides, per navigation target, whether the current view must be replaced.
//
// Each visit fires at most one redirect and only after the checks it depends on have settled. Latches live in a
// [Memo] that is reset once per distinct target.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/integration"
	"github.com/desertthunder/postsiva/internal/session"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

// DefaultFallbackDelay is how long a redirect may take to land before navigation is forced.
const DefaultFallbackDelay = 5 * time.Second

// Navigator performs navigation. Replace must not add a history entry; Force is the last-resort hard navigation.
type Navigator interface {
	Replace(path string) error
	Force(path string)
	Current() string
}

// SessionSource exposes the session state the guard reads.
type SessionSource interface {
	State() session.State
}

// IntegrationSource exposes the integration state and triggers a connection check.
type IntegrationSource interface {
	State() integration.State
	CheckConnection(ctx context.Context) (integration.State, error)
}

// CaptureSource reports whether this load captured a credential from the address.
type CaptureSource interface {
	Fresh() bool
}

// Memo holds the latches for one navigation target.
type Memo struct {
	Target                string
	HasRedirected         bool
	HasCheckedIntegration bool
	HasHandledOAuth       bool
	RedirectedTo          string
}

// Action is what a guard decision asks the caller to do.
type Action int

const (
	// Stay leaves the view in place.
	Stay Action = iota
	// Wait means a check the decision depends on is still in flight.
	Wait
	// Redirect means this evaluation issued a redirect to Target.
	Redirect
	// Redirected means an earlier evaluation already redirected this visit to Target.
	Redirected
)

func (a Action) String() string {
	switch a {
	case Stay:
		return "stay"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Redirected:
		return "redirected"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Action Action
	Target string
	Reason string
}

// Config wires a [Guard] to the state it reads and the navigator it drives.
type Config struct {
	Store       tokenstore.Store
	Session     SessionSource
	Integration IntegrationSource
	// Capture is optional.
	Capture   CaptureSource
	Navigator Navigator
	// FallbackDelay defaults to [DefaultFallbackDelay].
	FallbackDelay time.Duration
	Logger        *log.Logger
}

// Guard decides, once per navigation, whether the current view may render or must redirect.
type Guard struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	view     View
	memo     Memo
	fallback *time.Timer
	// consumed is load-scoped: a capture forces at most one re-check however many targets follow.
	consumed bool
}

// New creates a Guard. A non-positive FallbackDelay uses [DefaultFallbackDelay].
func New(cfg Config) *Guard {
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = DefaultFallbackDelay
	}
	return &Guard{cfg: cfg, logger: shared.WithLogger(cfg.Logger, "component", "guard")}
}

// Navigate makes view the current target. A new target clears every latch; revisiting the same target does not.
func (g *Guard) Navigate(view View) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if view.Path == g.memo.Target {
		return
	}
	g.view = view
	g.memo = Memo{Target: view.Path}
	g.stopFallback()
	g.logger.Debug("navigated", "target", view.Path)
}

// Memo returns a copy of the current latches.
func (g *Guard) Memo() Memo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memo
}

// Stop cancels a pending fallback navigation.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopFallback()
}

// Evaluate runs the guard against the current combined state. It is safe to call on every state change.
//
// When it starts the integration check it blocks until that check resolves and then evaluates again.
func (g *Guard) Evaluate(ctx context.Context) Decision {
	g.mu.Lock()

	view := g.view
	if g.memo.Target == "" {
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "no target"}
	}
	if g.memo.HasRedirected {
		to := g.memo.RedirectedTo
		g.mu.Unlock()
		return Decision{Action: Redirected, Target: to, Reason: "already redirected"}
	}

	sess := g.cfg.Session.State()
	if sess.IsLoading {
		g.mu.Unlock()
		return Decision{Action: Wait, Reason: "session check in flight"}
	}
	if !view.RequiresAuth {
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "public view"}
	}

	hasCredential := tokenstore.Has(g.cfg.Store)
	if !hasCredential && !sess.IsAuthenticated {
		return g.redirect(LoginPath, "not authenticated")
	}
	if !sess.IsAuthenticated {
		g.mu.Unlock()
		return Decision{Action: Wait, Reason: "session not yet validated"}
	}
	if !view.NeedsIntegration {
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "authenticated"}
	}

	integ := g.cfg.Integration.State()
	fresh := g.cfg.Capture != nil && !g.consumed && !g.memo.HasHandledOAuth && g.cfg.Capture.Fresh()
	if !g.memo.HasCheckedIntegration && (integ.Status == integration.Unknown || fresh) {
		g.memo.HasCheckedIntegration = true
		if fresh {
			g.memo.HasHandledOAuth = true
			g.consumed = true
		}
		target := g.memo.Target
		g.mu.Unlock()

		g.logger.Debug("checking integration", "target", target, "fresh_capture", fresh)
		if _, err := g.cfg.Integration.CheckConnection(ctx); err != nil {
			g.logger.Warn("integration check failed", "err", err)
		}

		g.mu.Lock()
		moved := g.memo.Target != target
		g.mu.Unlock()
		if moved {
			return Decision{Action: Stay, Reason: "navigated away during check"}
		}
		return g.Evaluate(ctx)
	}

	switch integ.Status {
	case integration.Connected:
		if view.OnConnected != "" {
			return g.redirect(view.OnConnected, "integration connected")
		}
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "integration connected"}

	case integration.Disconnected:
		if view.OnDisconnected != "" {
			return g.redirect(view.OnDisconnected, "integration disconnected")
		}
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "integration disconnected"}

	case integration.Failed:
		g.mu.Unlock()
		return Decision{Action: Stay, Reason: "integration check failed: " + integ.Error}

	default:
		g.mu.Unlock()
		return Decision{Action: Wait, Reason: "integration check in flight"}
	}
}

// redirect latches the visit and navigates. It must be called with g.mu held and releases it.
func (g *Guard) redirect(to, reason string) Decision {
	g.memo.HasRedirected = true
	g.memo.RedirectedTo = to
	source := g.memo.Target
	nav := g.cfg.Navigator

	g.logger.Info("redirecting", "from", source, "to", to, "reason", reason)

	if nav == nil {
		g.mu.Unlock()
		return Decision{Action: Redirect, Target: to, Reason: reason}
	}

	// Replace may re-enter Navigate, so the timer is armed before the lock is released.
	g.stopFallback()
	g.fallback = time.AfterFunc(g.cfg.FallbackDelay, func() {
		if nav.Current() == source {
			g.logger.Warn("redirect did not land, forcing navigation", "to", to)
			nav.Force(to)
		}
	})
	g.mu.Unlock()

	if err := nav.Replace(to); err != nil {
		g.logger.Warn("redirect failed, forcing navigation", "to", to, "err", err)
		g.Stop()
		nav.Force(to)
	}
	return Decision{Action: Redirect, Target: to, Reason: reason}
}

func (g *Guard) stopFallback() {
	if g.fallback != nil {
		g.fallback.Stop()
		g.fallback = nil
	}
}
