package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/postsiva/internal/shared"
)

const defaultVideoTitle = "Video Post"

// CreatePost sends the single creation request for in.Kind and returns the created post.
func (c *Client) CreatePost(ctx context.Context, in PostInput) (*PostResult, error) {
	req, err := postRequest(in)
	if err != nil {
		return nil, err
	}

	var res PostResult
	if err := c.do(ctx, req, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, failed(firstNonEmpty(res.Error, res.Message, "Failed to create post"))
	}
	return &res, nil
}

// WireVisibility upper-cases visibility, defaulting to PUBLIC.
func WireVisibility(v string) string {
	if v == "" {
		return "PUBLIC"
	}
	return strings.ToUpper(v)
}

func postRequest(in PostInput) (request, error) {
	visibility := WireVisibility(in.Visibility)
	scheduled := ""
	if !in.ScheduledAt.IsZero() {
		scheduled = in.ScheduledAt.UTC().Format(time.RFC3339)
	}

	switch in.Kind {
	case KindText:
		body := map[string]string{"text": in.Text, "visibility": visibility}
		if scheduled != "" {
			body["scheduled_time"] = scheduled
		}
		return request{method: http.MethodPost, path: "/linkedin/text-post/", jsonBody: body}, nil

	case KindImage:
		if len(in.MediaIDs) == 0 {
			return request{}, fmt.Errorf("%w: Image ID is required for image posts", shared.ErrInvalidInput)
		}
		form := (&multipartForm{}).set("image_id", in.MediaIDs[0]).set("text", in.Text).set("visibility", visibility)
		return withSchedule(request{method: http.MethodPost, path: "/linkedin/image-post/", form: form}, scheduled), nil

	case KindMultiple:
		if len(in.MediaIDs) < 2 {
			return request{}, fmt.Errorf("%w: Multi-image posts require at least 2 images. Provided: %d", shared.ErrInvalidInput, len(in.MediaIDs))
		}
		form := (&multipartForm{}).set("image_ids", strings.Join(in.MediaIDs, ",")).set("text", in.Text).set("visibility", visibility)
		return withSchedule(request{method: http.MethodPost, path: "/linkedin/image-post/multi/", form: form}, scheduled), nil

	case KindVideo:
		if len(in.MediaIDs) == 0 {
			return request{}, fmt.Errorf("%w: Video ID is required for video posts", shared.ErrInvalidInput)
		}
		title := in.Title
		if title == "" {
			title = defaultVideoTitle
		}
		form := (&multipartForm{}).set("video_id", in.MediaIDs[0]).set("text", in.Text).set("title", title).set("visibility", visibility)
		return withSchedule(request{method: http.MethodPost, path: "/linkedin/video-post/", form: form}, scheduled), nil

	default:
		return request{}, fmt.Errorf("%w: unknown post type %q", shared.ErrInvalidInput, in.Kind)
	}
}

func withSchedule(r request, scheduled string) request {
	if scheduled != "" {
		r.form.set("scheduled_time", scheduled)
	}
	return r
}
