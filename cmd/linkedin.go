package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/integration"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/urfave/cli/v3"
)

type linkedinStatus struct {
	Status         string `json:"status"`
	Connected      bool   `json:"connected"`
	LinkedInUserID string `json:"linkedin_user_id,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	Expired        bool   `json:"expired"`
	Error          string `json:"error,omitempty"`
}

// LinkedInStatus checks the integration token.
func (r *Runner) LinkedInStatus(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.enter(ctx, guard.Connect)
	if err != nil {
		return err
	}
	defer orch.Close()

	st := orch.Integration.State()
	if !st.Status.Resolved() {
		if st, err = orch.Integration.CheckConnection(ctx); err != nil {
			return fmt.Errorf("failed to check LinkedIn connection: %s", backend.Message(err))
		}
	}

	out := linkedinStatus{Status: st.Status.String(), Connected: st.IsConnected, Error: st.Error}
	if st.Token != nil {
		out.LinkedInUserID = st.Token.LinkedInUserID
		out.ExpiresAt = st.Token.ExpiresAt
		out.Expired = !st.Token.OAuth2().Valid()
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}

	if !out.Connected {
		return r.writePlain("LinkedIn: ✗ not connected\n")
	}
	r.writePlain("LinkedIn: ✓ connected\n")
	r.writePlain("Member: %s\n", out.LinkedInUserID)
	if out.ExpiresAt != "" {
		r.writePlain("Token expires: %s\n", out.ExpiresAt)
	}
	if out.Expired {
		r.writePlain("Token has expired; run `postsiva linkedin refresh`\n")
	}
	return nil
}

// LinkedInConnect opens the consent page, then waits until the backend reports the connection or the consent
// ceiling elapses.
func (r *Runner) LinkedInConnect(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.enter(ctx, guard.Connect)
	if err != nil {
		return err
	}
	defer orch.Close()

	if orch.Router.Current() == guard.ProfilePath {
		return r.writePlain("✓ LinkedIn is already connected\n")
	}

	authURL, err := orch.Integration.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to start LinkedIn connection: %s", backend.Message(err))
	}

	open := r.opener
	if cmd.Bool("no-browser") {
		open = shared.PrintOpener(r.output)
	}
	if err := open(authURL); err != nil {
		return err
	}
	r.writePlain("Waiting for LinkedIn consent...\n")

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := orch.Integration.Watch(watchCtx, r.config.Integration.PollInterval.Duration)

	st, err := orch.Integration.AwaitConsent(ctx, done, r.timeout(cmd))
	if err != nil {
		return err
	}
	if st.Status != integration.Connected {
		return fmt.Errorf("%w: %s", shared.ErrNotConnected, st.Error)
	}

	r.logger.Info("linkedin connected", "view", orch.Router.Current())
	return r.writePlain("✓ LinkedIn connected (%s)\n", st.Token.LinkedInUserID)
}

// LinkedInDisconnect removes the integration token.
func (r *Runner) LinkedInDisconnect(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.enter(ctx, guard.Profile)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Integration.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect LinkedIn: %s", backend.Message(err))
	}
	return r.writePlain("✓ LinkedIn disconnected\n")
}

// LinkedInRefresh refreshes the integration token.
func (r *Runner) LinkedInRefresh(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.enter(ctx, guard.Profile)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Integration.RefreshToken(ctx); err != nil {
		return fmt.Errorf("failed to refresh LinkedIn token: %s", backend.Message(err))
	}
	if tok := orch.Integration.State().Token; tok != nil && tok.ExpiresAt != "" {
		return r.writePlain("✓ LinkedIn token refreshed, expires %s\n", tok.ExpiresAt)
	}
	return r.writePlain("✓ LinkedIn token refreshed\n")
}

// LinkedInProfile shows the connected member.
func (r *Runner) LinkedInProfile(ctx context.Context, cmd *cli.Command) error {
	orch, err := r.enter(ctx, guard.Profile)
	if err != nil {
		return err
	}
	defer orch.Close()

	profile, err := orch.Integration.Profile(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch LinkedIn profile: %s", backend.Message(err))
	}
	if cmd.Bool("json") {
		return r.writeJSON(profile, true)
	}

	r.writePlainHeader(profile.Name)
	r.writePlain("Member: %s\n", profile.LinkedInUserID)
	if profile.Email != "" {
		verified := ""
		if profile.EmailVerified {
			verified = " (verified)"
		}
		r.writePlain("Email: %s%s\n", profile.Email, verified)
	}
	if profile.Picture != "" {
		r.writePlain("Picture: %s\n", profile.Picture)
	}
	return nil
}
