package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/orchestrator"
	"github.com/desertthunder/postsiva/internal/server"
	"github.com/desertthunder/postsiva/internal/session"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin exchanges email and password for a session and reports where the guard lands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.orchestrator(guard.LoginPath)
	if err != nil {
		return err
	}
	defer orch.Close()

	if _, err := orch.Boot(ctx, nil); err != nil {
		return err
	}

	d, err := orch.Login(ctx, backend.LoginRequest{Email: cmd.String("email"), Password: cmd.String("password")})
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, backend.Message(err))
	}
	r.logger.Debug("logged in", "decision", d.Action, "target", d.Target)
	return r.reportSession(orch)
}

// AuthSignup creates an account, which also logs in.
func (r *Runner) AuthSignup(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.orchestrator(guard.LoginPath)
	if err != nil {
		return err
	}
	defer orch.Close()

	if _, err := orch.Boot(ctx, nil); err != nil {
		return err
	}

	_, err = orch.Signup(ctx, backend.SignupRequest{
		Email:    cmd.String("email"),
		Username: cmd.String("username"),
		FullName: cmd.String("name"),
		Password: cmd.String("password"),
	})
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, backend.Message(err))
	}
	return r.reportSession(orch)
}

// AuthGoogle runs the Google login: the backend redirects the browser to a local listener carrying the credential
// on its query string, which the orchestrator captures on boot.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	client, err := r.backendClient()
	if err != nil {
		return err
	}

	status, err := client.GoogleStatus(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, backend.Message(err))
	}
	if !status.Configured {
		return fmt.Errorf("%w: Google login is not configured on the backend", shared.ErrServiceUnavailable)
	}

	auth := r.config.Auth
	start := auth.RedirectPath
	if _, ok := guard.Lookup(start); !ok {
		start = guard.CallbackPath
	}
	orch, err := r.orchestrator(start)
	if err != nil {
		return err
	}
	defer orch.Close()

	handler, err := server.NewCallbackHandler(auth.CallbackOrigin(), auth.RedirectPath, func(loc session.Location) (session.CaptureResult, error) {
		res, err := orch.Boot(ctx, loc)
		return res.Capture, err
	})
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(auth.CallbackHost, strconv.Itoa(auth.CallbackPort))
	srv, err := server.Listen(addr, handler, r.logger)
	if err != nil {
		return err
	}

	open := r.opener
	if cmd.Bool("no-browser") {
		open = shared.PrintOpener(r.output)
	}
	if err := orch.Session.LoginWithGoogle(auth.RedirectPath, auth.CallbackOrigin(), open); err != nil {
		srv.Shutdown()
		return err
	}

	if _, err := srv.Wait(ctx, r.timeout(cmd)); err != nil {
		return err
	}
	return r.reportSession(orch)
}

// AuthLogout clears the stored credential. It never calls the backend.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.orchestrator(guard.HomePath)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

type authStatus struct {
	Authenticated bool          `json:"authenticated"`
	User          *backend.User `json:"user,omitempty"`
	LinkedIn      string        `json:"linkedin"`
	View          string        `json:"view"`
}

// AuthStatus validates the stored credential and reports the session and the LinkedIn connection.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.orchestrator(guard.HomePath)
	if err != nil {
		return err
	}
	defer orch.Close()

	if _, err := orch.Boot(ctx, nil); err != nil {
		return err
	}

	st := orch.Session.State()
	out := authStatus{
		Authenticated: st.IsAuthenticated,
		User:          st.User,
		LinkedIn:      orch.Integration.State().Status.String(),
		View:          orch.Router.Current(),
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}

	if !out.Authenticated {
		r.writePlain("✗ Not logged in\n")
		if st.Error != "" {
			r.writePlain("  %s\n", st.Error)
		}
		return r.writePlain("Run 'postsiva auth login' or 'postsiva auth google'\n")
	}
	return r.reportSession(orch)
}

func (r *Runner) reportSession(orch *orchestrator.Orchestrator) error {
	st := orch.Session.State()
	if !st.IsAuthenticated || st.User == nil {
		return shared.ErrNotAuthenticated
	}

	r.writePlain("✓ Logged in as %s <%s>\n", st.User.DisplayName(), st.User.Email)
	switch orch.Router.Current() {
	case guard.ConnectPath:
		r.writePlain("LinkedIn: ✗ not connected (run 'postsiva linkedin connect')\n")
	case guard.ProfilePath, guard.HomePath:
		if orch.Integration.State().IsConnected {
			r.writePlain("LinkedIn: ✓ connected\n")
		}
	}
	return nil
}

// timeout reads --timeout, defaulting to the configured consent ceiling.
func (r *Runner) timeout(cmd *cli.Command) time.Duration {
	if d := cmd.Duration("timeout"); d > 0 {
		return d
	}
	return r.config.Integration.ConsentTimeout.Duration
}
