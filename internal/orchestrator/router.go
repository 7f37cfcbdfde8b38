package orchestrator

import (
	"sync"
)

// Router is an in-process [guard.Navigator]. It tracks the current path and the redirects that brought it there.
//
// follow, when set, runs after every navigation so the new view is guarded in turn.
type Router struct {
	mu      sync.Mutex
	current string
	history []string
	forced  int
	follow  func(path string)
}

// NewRouter creates a Router positioned at start.
func NewRouter(start string) *Router {
	return &Router{current: start}
}

func (r *Router) Replace(path string) error {
	r.move(path, false)
	return nil
}

func (r *Router) Force(path string) {
	r.move(path, true)
}

// Current returns the path the router is on.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History lists every path navigated to after the start, in order.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Forced counts hard navigations.
func (r *Router) Forced() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.forced
}

func (r *Router) move(path string, forced bool) {
	r.mu.Lock()
	if r.current == path {
		r.mu.Unlock()
		return
	}
	r.current = path
	r.history = append(r.history, path)
	if forced {
		r.forced++
	}
	follow := r.follow
	r.mu.Unlock()

	if follow != nil {
		follow(path)
	}
}

func (r *Router) setFollow(fn func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.follow = fn
}

// setCurrent moves without following; the caller guards the view itself.
func (r *Router) setCurrent(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != path {
		r.current = path
		r.history = append(r.history, path)
	}
}
