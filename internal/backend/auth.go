package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/postsiva/internal/shared"
)

// Login exchanges credentials for an access token. It does not touch the token store.
func (c *Client) Login(ctx context.Context, creds LoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Signup creates an account and returns its first access token.
func (c *Client) Signup(ctx context.Context, data SignupRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/signup", data)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: path, jsonBody: body, anon: true}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: response carried no access token", shared.ErrAuthFailed)
	}
	return &resp, nil
}

// Me fetches the profile of the credential holder.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MeWithToken fetches the profile for an explicit credential, bypassing the store.
func (c *Client) MeWithToken(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var user User
	if err := c.send(c.anon, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GoogleStatus reports the backend's Google login configuration.
func (c *Client) GoogleStatus(ctx context.Context) (*GoogleStatus, error) {
	var status GoogleStatus
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/google/status", anon: true}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GoogleLoginURL builds the address that starts the backend-driven Google login.
//
// redirectPath is normalised to start with "/" and defaults to "/dashboard".
func (c *Client) GoogleLoginURL(redirectPath, origin string) string {
	if redirectPath == "" {
		redirectPath = "/dashboard"
	}
	if !strings.HasPrefix(redirectPath, "/") {
		redirectPath = "/" + redirectPath
	}

	q := url.Values{}
	q.Set("redirect_uri", redirectPath)
	if origin != "" {
		q.Set("origin", origin)
	}
	return c.baseURL + "/auth/google/login?" + q.Encode()
}
