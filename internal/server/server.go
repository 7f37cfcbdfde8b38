package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/shared"
)

// CallbackServer owns the listener for one login.
type CallbackServer struct {
	handler *CallbackHandler
	srv     *http.Server
	ln      net.Listener
	errs    chan error
	logger  *log.Logger
}

// Listen binds addr and starts serving handler. Binding errors are returned immediately.
func Listen(addr string, handler *CallbackHandler, logger *log.Logger) (*CallbackServer, error) {
	logger = shared.WithLogger(logger, "component", "callback")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(handler)

	s := &CallbackServer{
		handler: handler,
		srv:     &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		ln:      ln,
		errs:    make(chan error, 1),
		logger:  logger,
	}
	go func() {
		logger.Info("waiting for login callback", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return s, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *CallbackServer) Addr() string {
	return s.ln.Addr().String()
}

// Wait blocks for the callback, a server failure, ctx or timeout, then shuts the listener down.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (CallbackResult, error) {
	defer s.Shutdown()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-s.handler.Result():
		return res, res.Err
	case err := <-s.errs:
		return CallbackResult{}, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return CallbackResult{}, fmt.Errorf("%w: no login callback after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

func (s *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("error shutting down callback server", "err", err)
	}
}
