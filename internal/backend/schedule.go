package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/postsiva/internal/shared"
)

// ScheduledPosts lists the caller's scheduled posts.
func (c *Client) ScheduledPosts(ctx context.Context, q ScheduleQuery) (*ScheduledPage, error) {
	var resp envelope[ScheduledPage]
	err := c.do(ctx, request{method: http.MethodGet, path: "/scheduled-posts/my-scheduled-posts", query: q}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failed(firstNonEmpty(resp.Error, resp.Message, "Failed to load scheduled posts"))
	}
	return &resp.Data, nil
}

// UpdateScheduledPost patches the time or content of a scheduled post.
func (c *Client) UpdateScheduledPost(ctx context.Context, id string, u ScheduleUpdate) error {
	if id == "" {
		return fmt.Errorf("%w: scheduled post id", shared.ErrMissingArgument)
	}
	return c.do(ctx, request{method: http.MethodPatch, path: "/scheduled-posts/" + url.PathEscape(id), jsonBody: u}, nil)
}

// CancelScheduledPost deletes a scheduled post before it publishes.
func (c *Client) CancelScheduledPost(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: scheduled post id", shared.ErrMissingArgument)
	}
	return c.do(ctx, request{method: http.MethodDelete, path: "/scheduled-posts/" + url.PathEscape(id)}, nil)
}
