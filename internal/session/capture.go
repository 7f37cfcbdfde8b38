package session

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

// Query parameters the backend appends after the Google login handshake.
const (
	paramSuccess = "success"
	paramToken   = "token"
	paramUser    = "user"
	paramEmail   = "email"
)

var captureParams = []string{paramSuccess, paramToken, paramUser, paramEmail}

// Location is a navigable address that can be rewritten without adding a history entry.
type Location interface {
	URL() *url.URL
	Replace(u *url.URL) error
}

// CaptureResult reports what the address carried.
type CaptureResult struct {
	Success bool
	Token   string
	User    string
	Email   string
}

// Capture lifts a credential off the address exactly once per load.
type Capture struct {
	store  tokenstore.Store
	logger *log.Logger

	mu     sync.Mutex
	ran    bool
	result CaptureResult
}

// NewCapture creates a Capture that writes captured credentials to store.
func NewCapture(store tokenstore.Store, logger *log.Logger) *Capture {
	return &Capture{store: store, logger: shared.WithLogger(logger, "component", "capture")}
}

// Run inspects loc. With success=true and a token present it persists the token, then replaces loc with a copy
// stripped of the capture parameters; other parameters survive. Otherwise it reports failure and mutates nothing.
//
// Only the first call per Capture does any work.
func (c *Capture) Run(loc Location) (CaptureResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ran {
		return CaptureResult{}, nil
	}
	c.ran = true

	res, err := capture(c.store, loc)
	if res.Success {
		c.logger.Info("captured credential from redirect", "user", res.User, "email", res.Email)
	}
	c.result = res
	return res, err
}

// Fresh reports whether Run captured a credential on this load.
func (c *Capture) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Success
}

func capture(store tokenstore.Store, loc Location) (CaptureResult, error) {
	u := loc.URL()
	if u == nil {
		return CaptureResult{}, nil
	}

	q := u.Query()
	token := q.Get(paramToken)
	if q.Get(paramSuccess) != "true" || token == "" {
		return CaptureResult{}, nil
	}

	if err := store.Set(token); err != nil {
		return CaptureResult{}, fmt.Errorf("%w: %v", shared.ErrCaptureFailed, err)
	}

	res := CaptureResult{Success: true, Token: token, User: q.Get(paramUser), Email: q.Get(paramEmail)}

	for _, p := range captureParams {
		q.Del(p)
	}
	clean := *u
	clean.RawQuery = q.Encode()
	if err := loc.Replace(&clean); err != nil {
		return res, fmt.Errorf("%w: scrubbing address: %v", shared.ErrCaptureFailed, err)
	}
	return res, nil
}
