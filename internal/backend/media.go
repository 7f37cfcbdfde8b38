package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/desertthunder/postsiva/internal/shared"
)

// ListMedia fetches one page of the media library.
func (c *Client) ListMedia(ctx context.Context, q MediaQuery) (*MediaPage, error) {
	var page MediaPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/media/", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMedia fetches a single media item.
func (c *Client) GetMedia(ctx context.Context, id string) (*MediaItem, error) {
	var item MediaItem
	if err := c.do(ctx, request{method: http.MethodGet, path: "/media/" + url.PathEscape(id)}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UploadMedia stores one file and returns the backend's description of it.
//
// A response without a media id is a failure even when the status is 2xx.
func (c *Client) UploadMedia(ctx context.Context, name string, r io.Reader, mediaType MediaType) (*UploadResult, error) {
	form := &multipartForm{fileKey: "media", fileName: filepath.Base(name), file: r}
	form.set("media_type", string(mediaType))

	var res UploadResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/media/upload", form: form}, &res); err != nil {
		return nil, err
	}

	if !res.Success || strings.TrimSpace(res.MediaID) == "" {
		return nil, failed(firstNonEmpty(res.Error, res.Message, "Failed to upload media: media_id not found in response"))
	}
	return &res, nil
}

// DeleteMedia removes one item.
func (c *Client) DeleteMedia(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: media id", shared.ErrMissingArgument)
	}
	return c.do(ctx, request{method: http.MethodDelete, path: "/media/" + url.PathEscape(id)}, nil)
}

// BulkDeleteMedia removes several items in one request.
func (c *Client) BulkDeleteMedia(ctx context.Context, ids []string) (*DeleteResult, error) {
	body := struct {
		MediaIDs []string `json:"media_ids"`
	}{MediaIDs: ids}

	var res DeleteResult
	if err := c.do(ctx, request{method: http.MethodDelete, path: "/media/bulk", jsonBody: body}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CleanupMedia asks the backend to purge expired media.
func (c *Client) CleanupMedia(ctx context.Context) (*DeleteResult, error) {
	var res DeleteResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/media/cleanup"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DetectMediaType classifies a file name by extension.
func DetectMediaType(name string) (MediaType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".heic":
		return MediaImage, nil
	case ".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v":
		return MediaVideo, nil
	default:
		return "", fmt.Errorf("%w: unsupported media file %s", shared.ErrInvalidInput, filepath.Base(name))
	}
}
