package posts

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
)

// Error is a pipeline failure whose text is shown as is.
type Error struct {
	Message string
	Kind    error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func invalid(msg string) error {
	return &Error{Message: msg, Kind: shared.ErrInvalidInput}
}

// normalize checks req before any network call and fills defaults.
//
// An image post with several slots becomes a multi-image post so every slot is published.
func normalize(req Request) (Request, error) {
	switch strings.ToLower(req.Visibility) {
	case "", "public":
		req.Visibility = "public"
	case "connections":
		req.Visibility = "connections"
	default:
		return req, invalid(fmt.Sprintf("visibility must be public or connections, got %q", req.Visibility))
	}

	req.Slots = slices.Clone(req.Slots)
	for i, s := range req.Slots {
		if s.MediaID == "" && s.Path == "" && s.Reader == nil {
			return req, invalid(fmt.Sprintf("File %d is empty", i+1))
		}
		if s.Name == "" {
			req.Slots[i].Name = fmt.Sprintf("file-%d", i+1)
		}
	}

	switch req.Kind {
	case backend.KindText:
		if strings.TrimSpace(req.Text) == "" {
			return req, invalid("Post text is required")
		}
		if len(req.Slots) > 0 {
			return req, invalid("Text posts cannot carry media")
		}

	case backend.KindImage:
		if len(req.Slots) == 0 {
			return req, invalid("Image file is required for image posts")
		}
		if len(req.Slots) > 1 {
			req.Kind = backend.KindMultiple
			return normalize(req)
		}
		req.Text = strings.TrimSpace(req.Text)

	case backend.KindMultiple:
		switch n := len(req.Slots); {
		case n == 0:
			return req, invalid("At least one image file is required")
		case n < 2:
			return req, invalid("Multiple images post requires at least 2 images")
		case n > MaxImages:
			return req, invalid("Maximum 20 images allowed")
		}

	case backend.KindVideo:
		if len(req.Slots) == 0 {
			return req, invalid("Video file is required for video posts")
		}
		if len(req.Slots) > 1 {
			return req, invalid("Only one video can be attached")
		}
		if req.Title == "" {
			req.Title = VideoTitle(req.Text)
		}

	case "":
		req.Kind = inferKind(req)
		return normalize(req)

	default:
		return req, invalid(fmt.Sprintf("Unknown post type: %s", req.Kind))
	}
	return req, nil
}

// VideoTitle is the first line of text, or "Video Post".
func VideoTitle(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return "Video Post"
}

func inferKind(req Request) backend.PostKind {
	switch n := len(req.Slots); {
	case n == 0:
		return backend.KindText
	case n > 1:
		return backend.KindMultiple
	}
	if s := req.Slots[0]; s.Path != "" {
		if mt, err := backend.DetectMediaType(s.Path); err == nil && mt == backend.MediaVideo {
			return backend.KindVideo
		}
	}
	return backend.KindImage
}
