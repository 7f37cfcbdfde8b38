package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/postsiva/internal/shared"
)

func TestLinkedIn(t *testing.T) {
	t.Run("LinkedInToken connected", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/linkedin/get-token", http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"linkedin_user_id": "li-1",
				"access_token":     "li-token",
				"expires_at":       time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			},
		})

		tok, err := c.LinkedInToken(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok == nil || tok.LinkedInUserID != "li-1" {
			t.Fatalf("unexpected token %+v", tok)
		}
		if !tok.OAuth2().Valid() {
			t.Error("token expiring in an hour should be valid")
		}
	})

	t.Run("LinkedInToken not found is disconnected", func(t *testing.T) {
		c, _, _ := newTestClient(t, "tok")

		tok, err := c.LinkedInToken(context.Background())
		if err != nil || tok != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", tok, err)
		}
	})

	t.Run("LinkedInToken without user id is disconnected", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/linkedin/get-token", http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})

		if tok, err := c.LinkedInToken(context.Background()); err != nil || tok != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", tok, err)
		}
	})

	t.Run("LinkedInToken server error", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/linkedin/get-token", http.StatusInternalServerError, map[string]string{"detail": "boom"})

		if _, err := c.LinkedInToken(context.Background()); !errors.Is(err, ErrServerError) {
			t.Errorf("expected ErrServerError, got %v", err)
		}
	})

	t.Run("CreateLinkedInToken", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/create-token", http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"auth_url": "https://www.linkedin.com/oauth/v2/authorization?x=1"},
		})

		authURL, err := c.CreateLinkedInToken(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(authURL, "https://www.linkedin.com/") {
			t.Errorf("unexpected auth URL %s", authURL)
		}
	})

	t.Run("CreateLinkedInToken without URL", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/create-token", http.StatusOK, map[string]any{"success": false, "message": "LinkedIn not configured"})

		_, err := c.CreateLinkedInToken(context.Background())
		if Message(err) != "LinkedIn not configured" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Refresh, Delete and Profile", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/refresh-token", http.StatusOK, map[string]any{"success": true, "data": map[string]any{"linkedin_user_id": "li-1", "access_token": "new"}})
		srv.JSON(http.MethodDelete, "/linkedin/delete-token", http.StatusOK, map[string]any{"success": true})
		srv.JSON(http.MethodGet, "/linkedin/user-profile/", http.StatusOK, map[string]any{"success": true, "profile": map[string]any{"name": "Ada Lovelace"}})

		tok, err := c.RefreshLinkedInToken(context.Background())
		if err != nil || tok.AccessToken != "new" {
			t.Errorf("refresh: %v %+v", err, tok)
		}
		if err := c.DeleteLinkedInToken(context.Background()); err != nil {
			t.Errorf("delete: %v", err)
		}
		profile, err := c.LinkedInProfile(context.Background())
		if err != nil || profile.Name != "Ada Lovelace" {
			t.Errorf("profile: %v %+v", err, profile)
		}
	})
}

func TestMedia(t *testing.T) {
	t.Run("ListMedia encodes the query", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/media/", http.StatusOK, map[string]any{
			"success": true,
			"media":   []map[string]any{{"media_id": "m1", "media_type": "image"}},
			"total":   5, "limit": 12, "offset": 0, "count": 1,
		})

		page, err := c.ListMedia(context.Background(), MediaQuery{MediaType: MediaVideo, Limit: 12, Offset: 24})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Total != 5 || len(page.Media) != 1 || page.Media[0].ID != "m1" {
			t.Errorf("unexpected page %+v", page)
		}

		q := srv.Calls(http.MethodGet, "/media/")[0].Query
		if q.Get("media_type") != "video" || q.Get("limit") != "12" || q.Get("offset") != "24" {
			t.Errorf("unexpected query %v", q)
		}
	})

	t.Run("ListMedia omits an empty filter", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/media/", http.StatusOK, map[string]any{"success": true})

		if _, err := c.ListMedia(context.Background(), MediaQuery{Limit: 12}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q := srv.Calls(http.MethodGet, "/media/")[0].Query; q.Has("media_type") {
			t.Errorf("media_type should be omitted, got %v", q)
		}
	})

	t.Run("UploadMedia sends a multipart form", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/media/upload", http.StatusOK, map[string]any{"success": true, "media_id": "m9", "public_url": "https://cdn/x.png"})

		res, err := c.UploadMedia(context.Background(), "/tmp/photos/x.png", strings.NewReader("png"), MediaImage)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.MediaID != "m9" {
			t.Errorf("unexpected result %+v", res)
		}

		call := srv.Calls(http.MethodPost, "/media/upload")[0]
		if call.Form["media_type"] != "image" || call.Files["media"] != "x.png" {
			t.Errorf("unexpected form %v files %v", call.Form, call.Files)
		}
	})

	t.Run("UploadMedia without media id fails", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/media/upload", http.StatusOK, map[string]any{"success": true})

		_, err := c.UploadMedia(context.Background(), "x.png", strings.NewReader("png"), MediaImage)
		if !errors.Is(err, ErrUnexpected) {
			t.Errorf("expected ErrUnexpected, got %v", err)
		}
		if !strings.Contains(Message(err), "media_id not found") {
			t.Errorf("unexpected message %q", Message(err))
		}
	})

	t.Run("BulkDeleteMedia", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodDelete, "/media/bulk", http.StatusOK, map[string]any{"success": true, "deleted_count": 2})

		res, err := c.BulkDeleteMedia(context.Background(), []string{"a", "b"})
		if err != nil || res.DeletedCount != 2 {
			t.Fatalf("unexpected result %+v %v", res, err)
		}

		var body struct {
			MediaIDs []string `json:"media_ids"`
		}
		_ = json.Unmarshal(srv.Calls(http.MethodDelete, "/media/bulk")[0].Body, &body)
		if len(body.MediaIDs) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("DeleteMedia requires an id", func(t *testing.T) {
		c, _, _ := newTestClient(t, "tok")
		if err := c.DeleteMedia(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("DetectMediaType", func(t *testing.T) {
		tests := map[string]MediaType{"a.JPG": MediaImage, "b.webp": MediaImage, "c.mp4": MediaVideo, "d.MOV": MediaVideo}
		for name, want := range tests {
			if got, err := DetectMediaType(name); err != nil || got != want {
				t.Errorf("DetectMediaType(%s) = %s, %v", name, got, err)
			}
		}
		if _, err := DetectMediaType("notes.txt"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestCreatePost(t *testing.T) {
	ok := map[string]any{"success": true, "post": map[string]any{"post_id": "p1"}}

	t.Run("text post is JSON", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, ok)

		res, err := c.CreatePost(context.Background(), PostInput{Kind: KindText, Text: "hello"})
		if err != nil || res.Post.ID != "p1" {
			t.Fatalf("unexpected result %+v %v", res, err)
		}

		var body map[string]string
		_ = json.Unmarshal(srv.Calls(http.MethodPost, "/linkedin/text-post/")[0].Body, &body)
		if body["text"] != "hello" || body["visibility"] != "PUBLIC" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("image post", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/image-post/", http.StatusOK, ok)

		_, err := c.CreatePost(context.Background(), PostInput{Kind: KindImage, Text: "pic", Visibility: "connections", MediaIDs: []string{"m1"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		form := srv.Calls(http.MethodPost, "/linkedin/image-post/")[0].Form
		if form["image_id"] != "m1" || form["visibility"] != "CONNECTIONS" || form["text"] != "pic" {
			t.Errorf("unexpected form %v", form)
		}
	})

	t.Run("multi image post joins ids", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/image-post/multi/", http.StatusOK, ok)

		_, err := c.CreatePost(context.Background(), PostInput{Kind: KindMultiple, MediaIDs: []string{"m1", "m2", "m3"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := srv.Calls(http.MethodPost, "/linkedin/image-post/multi/")[0].Form["image_ids"]; got != "m1,m2,m3" {
			t.Errorf("image_ids = %q", got)
		}
	})

	t.Run("video post defaults the title and carries the schedule", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/video-post/", http.StatusOK, ok)

		at := time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC)
		_, err := c.CreatePost(context.Background(), PostInput{Kind: KindVideo, MediaIDs: []string{"v1"}, ScheduledAt: at})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		form := srv.Calls(http.MethodPost, "/linkedin/video-post/")[0].Form
		if form["title"] != "Video Post" || form["video_id"] != "v1" || form["scheduled_time"] != "2026-11-01T09:30:00Z" {
			t.Errorf("unexpected form %v", form)
		}
	})

	t.Run("invalid input never reaches the network", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")

		inputs := []PostInput{
			{Kind: KindImage},
			{Kind: KindMultiple, MediaIDs: []string{"m1"}},
			{Kind: KindVideo},
			{Kind: "carousel"},
		}
		for _, in := range inputs {
			if _, err := c.CreatePost(context.Background(), in); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("%s: expected ErrInvalidInput, got %v", in.Kind, err)
			}
		}
		if srv.Total() != 0 {
			t.Errorf("expected no requests, got %d", srv.Total())
		}
	})

	t.Run("success false", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, map[string]any{"success": false, "error": "LinkedIn token expired"})

		_, err := c.CreatePost(context.Background(), PostInput{Kind: KindText, Text: "x"})
		if Message(err) != "LinkedIn token expired" {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestSchedule(t *testing.T) {
	t.Run("ScheduledPosts", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodGet, "/scheduled-posts/my-scheduled-posts", http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"scheduled_posts": []map[string]any{{"scheduled_post_id": "s1", "status": "scheduled", "post_data": map[string]any{"text": "later"}}},
				"total":           1,
			},
		})

		page, err := c.ScheduledPosts(context.Background(), ScheduleQuery{Platform: "linkedin", Status: "scheduled", Limit: 50})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if page.Total != 1 || page.Posts[0].Data.Text != "later" {
			t.Errorf("unexpected page %+v", page)
		}
		q := srv.Calls(http.MethodGet, "/scheduled-posts/my-scheduled-posts")[0].Query
		if q.Get("platform") != "linkedin" || q.Get("status") != "scheduled" || q.Has("offset") {
			t.Errorf("unexpected query %v", q)
		}
	})

	t.Run("Update and Cancel", func(t *testing.T) {
		c, srv, _ := newTestClient(t, "tok")
		srv.JSON(http.MethodPatch, "/scheduled-posts/s1", http.StatusOK, map[string]any{"success": true})
		srv.JSON(http.MethodDelete, "/scheduled-posts/s1", http.StatusOK, map[string]any{"success": true})

		err := c.UpdateScheduledPost(context.Background(), "s1", ScheduleUpdate{
			ScheduledTime: "2026-11-01T09:30:00Z",
			PostData:      &ScheduledPostData{Text: "edited", Visibility: "PUBLIC"},
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := c.CancelScheduledPost(context.Background(), "s1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		var body map[string]any
		_ = json.Unmarshal(srv.Calls(http.MethodPatch, "/scheduled-posts/s1")[0].Body, &body)
		if body["scheduled_time"] != "2026-11-01T09:30:00Z" {
			t.Errorf("unexpected body %v", body)
		}
		if err := c.CancelScheduledPost(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
