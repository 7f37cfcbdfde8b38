package backend

import (
	"context"
	"net/http"
)

// LinkedInToken returns the stored integration token, or (nil, nil) when the integration is not connected.
func (c *Client) LinkedInToken(ctx context.Context) (*LinkedInToken, error) {
	var resp envelope[*LinkedInToken]
	err := c.do(ctx, request{method: http.MethodGet, path: "/linkedin/get-token"}, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !resp.Success || resp.Data == nil || resp.Data.LinkedInUserID == "" {
		return nil, nil
	}
	return resp.Data, nil
}

// CreateLinkedInToken starts the integration consent flow and returns the URL the user must visit.
func (c *Client) CreateLinkedInToken(ctx context.Context) (string, error) {
	var resp envelope[struct {
		AuthURL      string `json:"auth_url"`
		Instructions string `json:"instructions"`
	}]
	if err := c.do(ctx, request{method: http.MethodPost, path: "/linkedin/create-token"}, &resp); err != nil {
		return "", err
	}

	if resp.Data.AuthURL == "" {
		return "", failed(firstNonEmpty(resp.Error, resp.Message, "Failed to create LinkedIn token"))
	}
	return resp.Data.AuthURL, nil
}

// RefreshLinkedInToken asks the backend to refresh the integration token.
func (c *Client) RefreshLinkedInToken(ctx context.Context) (*LinkedInToken, error) {
	var resp envelope[*LinkedInToken]
	if err := c.do(ctx, request{method: http.MethodPost, path: "/linkedin/refresh-token"}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, failed(firstNonEmpty(resp.Error, resp.Message, "Failed to refresh LinkedIn token"))
	}
	return resp.Data, nil
}

// DeleteLinkedInToken disconnects the integration.
func (c *Client) DeleteLinkedInToken(ctx context.Context) error {
	var resp envelope[any]
	if err := c.do(ctx, request{method: http.MethodDelete, path: "/linkedin/delete-token"}, &resp); err != nil {
		return err
	}
	return nil
}

// LinkedInProfile fetches the member profile of the connected account.
func (c *Client) LinkedInProfile(ctx context.Context) (*LinkedInProfile, error) {
	var resp struct {
		Success bool             `json:"success"`
		Message string           `json:"message"`
		Profile *LinkedInProfile `json:"profile"`
		Error   string           `json:"error"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/linkedin/user-profile/"}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Profile == nil {
		return nil, failed(firstNonEmpty(resp.Error, resp.Message, "Failed to fetch LinkedIn profile"))
	}
	return resp.Profile, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
