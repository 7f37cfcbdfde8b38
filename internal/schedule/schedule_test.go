package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
	tu "github.com/desertthunder/postsiva/internal/testing"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

const listPath = "/scheduled-posts/my-scheduled-posts"

var listing = map[string]any{
	"success": true,
	"data": map[string]any{
		"total": 2,
		"scheduled_posts": []map[string]any{
			{"scheduled_post_id": "s1", "post_type": "text", "status": "scheduled", "post_data": map[string]any{"text": "one"}},
			{"scheduled_post_id": "s2", "post_type": "image", "status": "scheduled", "post_data": map[string]any{"text": "two"}},
		},
	},
}

func newBoard(t *testing.T) (*Board, *tu.Backend) {
	t.Helper()
	srv := tu.NewBackend(t)
	return New(backend.NewClient(srv.URL, tokenstore.NewMemoryWith("tok")), nil), srv
}

func TestLoad(t *testing.T) {
	t.Run("defaults to scheduled linkedin posts", func(t *testing.T) {
		b, srv := newBoard(t)
		srv.JSON(http.MethodGet, listPath, http.StatusOK, listing)

		if err := b.Load(context.Background(), Query{}); err != nil {
			t.Fatalf("load: %v", err)
		}
		q := srv.Calls(http.MethodGet, listPath)[0].Query
		if q.Get("platform") != "linkedin" || q.Get("status") != "scheduled" {
			t.Errorf("unexpected query %v", q)
		}
		st := b.State()
		if len(st.Posts) != 2 || st.Total != 2 || st.Posts[1].Data.Text != "two" || st.IsLoading {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("failure is recorded", func(t *testing.T) {
		b, srv := newBoard(t)
		srv.JSON(http.MethodGet, listPath, http.StatusOK, map[string]any{"success": false, "error": "scheduler offline"})

		if err := b.Load(context.Background(), Query{Status: "FAILED"}); err == nil {
			t.Fatal("expected an error")
		}
		st := b.State()
		if st.Error != "scheduler offline" || st.Query.Status != Failed {
			t.Errorf("unexpected state %+v", st)
		}
		b.ClearError()
		if b.State().Error != "" {
			t.Error("ClearError should drop the error")
		}
	})
}

func TestUpdate(t *testing.T) {
	t.Run("patches then reloads", func(t *testing.T) {
		b, srv := newBoard(t)
		srv.JSON(http.MethodGet, listPath, http.StatusOK, listing)
		srv.JSON(http.MethodPatch, "/scheduled-posts/s1", http.StatusOK, map[string]any{"success": true})

		at := time.Date(2026, 12, 24, 8, 0, 0, 0, time.FixedZone("X", 3600))
		if err := b.Update(context.Background(), "s1", Update{ScheduledTime: at, Visibility: "connections"}); err != nil {
			t.Fatalf("update: %v", err)
		}

		var body map[string]any
		if err := json.Unmarshal(srv.Calls(http.MethodPatch, "/scheduled-posts/s1")[0].Body, &body); err != nil {
			t.Fatal(err)
		}
		if body["scheduled_time"] != "2026-12-24T07:00:00Z" {
			t.Errorf("unexpected time %v", body["scheduled_time"])
		}
		data, _ := body["post_data"].(map[string]any)
		if data["visibility"] != "CONNECTIONS" {
			t.Errorf("unexpected post data %v", data)
		}
		if _, ok := data["text"]; ok {
			t.Errorf("untouched text must not be sent: %v", data)
		}
		if n := srv.Count(http.MethodGet, listPath); n != 1 {
			t.Errorf("expected a reload, got %d", n)
		}
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		b, srv := newBoard(t)
		if err := b.Update(context.Background(), "s1", Update{}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected missing argument, got %v", err)
		}
		if srv.Total() != 0 {
			t.Error("no request expected")
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("deletes then reloads", func(t *testing.T) {
		b, srv := newBoard(t)
		srv.JSON(http.MethodGet, listPath, http.StatusOK, listing)
		srv.JSON(http.MethodDelete, "/scheduled-posts/s2", http.StatusOK, map[string]any{"success": true})

		if err := b.Cancel(context.Background(), "s2"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if srv.Count(http.MethodDelete, "/scheduled-posts/s2") != 1 || srv.Count(http.MethodGet, listPath) != 1 {
			t.Error("expected one delete and one reload")
		}
	})

	t.Run("failure keeps the board", func(t *testing.T) {
		b, srv := newBoard(t)
		srv.JSON(http.MethodDelete, "/scheduled-posts/s9", http.StatusNotFound, map[string]string{"detail": "Scheduled post not found"})

		if err := b.Cancel(context.Background(), "s9"); !errors.Is(err, backend.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
		if b.State().Error != "Scheduled post not found" {
			t.Errorf("unexpected state %+v", b.State())
		}
	})
}
