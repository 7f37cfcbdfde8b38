package posts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
	tu "github.com/desertthunder/postsiva/internal/testing"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

var posted = map[string]any{"success": true, "post": map[string]any{"post_id": "urn:li:share:1"}}

func newPipeline(t *testing.T) (*Pipeline, *tu.Backend) {
	t.Helper()
	srv := tu.NewBackend(t)
	client := backend.NewClient(srv.URL, tokenstore.NewMemoryWith("tok"))
	return New(client, Options{Concurrency: 4}), srv
}

// uploadsByName answers uploads with media ids derived from the file name; names in failures get a 500 with that detail.
func uploadsByName(srv *tu.Backend, failures map[string]string) {
	srv.Handle(http.MethodPost, "/media/upload", func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if r.MultipartForm != nil && len(r.MultipartForm.File["media"]) > 0 {
			name = r.MultipartForm.File["media"][0].Filename
		}
		if msg, ok := failures[name]; ok {
			tu.WriteJSON(w, http.StatusInternalServerError, map[string]string{"detail": msg})
			return
		}
		tu.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "media_id": "id-" + name})
	})
}

func readerSlot(name string) Slot {
	return Slot{Name: name, Reader: strings.NewReader("bytes of " + name)}
}

func TestSubmitText(t *testing.T) {
	p, srv := newPipeline(t)
	srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, posted)

	res, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "Hello world"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Post.ID != "urn:li:share:1" {
		t.Errorf("unexpected result %+v", res)
	}

	calls := srv.Calls(http.MethodPost, "/linkedin/text-post/")
	if len(calls) != 1 {
		t.Fatalf("expected one text post, got %d", len(calls))
	}
	body := string(calls[0].Body)
	if !strings.Contains(body, `"text":"Hello world"`) || !strings.Contains(body, `"visibility":"PUBLIC"`) {
		t.Errorf("unexpected body %s", body)
	}
	if n := srv.Count(http.MethodPost, "/media/upload"); n != 0 {
		t.Errorf("expected no uploads, got %d", n)
	}
	if st := p.State(); st.Status != Succeeded || st.PostID != "urn:li:share:1" || st.Error != "" {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestSubmitPartialFailure(t *testing.T) {
	p, srv := newPipeline(t)
	uploadsByName(srv, map[string]string{"b.png": "network error"})
	srv.JSON(http.MethodPost, "/linkedin/image-post/", http.StatusOK, posted)
	srv.JSON(http.MethodPost, "/linkedin/image-post/multi/", http.StatusOK, posted)

	_, err := p.Submit(context.Background(), Request{
		Kind:  backend.KindImage,
		Text:  "two",
		Slots: []Slot{readerSlot("a.png"), readerSlot("b.png")},
	}, nil)

	const want = "Failed to upload 1 file(s): File 2: network error"
	if err == nil || err.Error() != want {
		t.Fatalf("expected %q, got %v", want, err)
	}
	if !errors.Is(err, shared.ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
	if n := srv.Count(http.MethodPost, "/media/upload"); n != 2 {
		t.Errorf("every slot should be attempted, got %d uploads", n)
	}
	if n := srv.Count(http.MethodPost, "/linkedin/image-post/") + srv.Count(http.MethodPost, "/linkedin/image-post/multi/"); n != 0 {
		t.Errorf("expected zero creation requests, got %d", n)
	}

	st := p.State()
	if st.Status != Idle || st.Error != want {
		t.Errorf("unexpected state %+v", st)
	}
	if st.Tasks[0].Status != TaskDone || st.Tasks[1].Status != TaskFailed || st.Tasks[1].Error != "network error" {
		t.Errorf("unexpected tasks %+v", st.Tasks)
	}
}

func TestSubmitAggregatesEveryFailure(t *testing.T) {
	p, srv := newPipeline(t)
	uploadsByName(srv, map[string]string{"a.png": "too large", "c.png": "bad format"})

	slots := []Slot{readerSlot("a.png"), readerSlot("b.png"), readerSlot("c.png")}
	_, err := p.Submit(context.Background(), Request{Kind: backend.KindMultiple, Slots: slots}, nil)

	const want = "Failed to upload 2 file(s): File 1: too large, File 3: bad format"
	if err == nil || err.Error() != want {
		t.Fatalf("expected %q, got %v", want, err)
	}
	var batch *BatchError
	if !errors.As(err, &batch) || len(batch.Failed) != 2 {
		t.Errorf("expected a batch error with 2 failures, got %#v", err)
	}
}

func TestSubmitMultiple(t *testing.T) {
	t.Run("joins ids in slot order", func(t *testing.T) {
		p, srv := newPipeline(t)
		uploadsByName(srv, nil)
		srv.JSON(http.MethodPost, "/linkedin/image-post/multi/", http.StatusOK, posted)

		slots := []Slot{readerSlot("1.png"), MediaSlot("lib-7"), readerSlot("3.png")}
		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindMultiple, Text: "album", Visibility: "connections", Slots: slots}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		call := srv.Calls(http.MethodPost, "/linkedin/image-post/multi/")[0]
		if call.Form["image_ids"] != "id-1.png,lib-7,id-3.png" || call.Form["visibility"] != "CONNECTIONS" {
			t.Errorf("unexpected form %v", call.Form)
		}
		if n := srv.Count(http.MethodPost, "/media/upload"); n != 2 {
			t.Errorf("library media must not be uploaded again, got %d uploads", n)
		}
	})

	t.Run("image post with several files is published as a multi-image post", func(t *testing.T) {
		p, srv := newPipeline(t)
		uploadsByName(srv, nil)
		srv.JSON(http.MethodPost, "/linkedin/image-post/multi/", http.StatusOK, posted)

		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindImage, Slots: []Slot{readerSlot("a.png"), readerSlot("b.png")}}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := srv.Count(http.MethodPost, "/linkedin/image-post/multi/"); n != 1 {
			t.Errorf("expected one multi-image post, got %d", n)
		}
	})
}

func TestValidation(t *testing.T) {
	many := make([]Slot, MaxImages+1)
	for i := range many {
		many[i] = MediaSlot("m")
	}

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"multiple with one image", Request{Kind: backend.KindMultiple, Slots: []Slot{MediaSlot("a")}}, "Multiple images post requires at least 2 images"},
		{"multiple with too many images", Request{Kind: backend.KindMultiple, Slots: many}, "Maximum 20 images allowed"},
		{"multiple with none", Request{Kind: backend.KindMultiple}, "At least one image file is required"},
		{"image without file", Request{Kind: backend.KindImage}, "Image file is required for image posts"},
		{"video without file", Request{Kind: backend.KindVideo}, "Video file is required for video posts"},
		{"two videos", Request{Kind: backend.KindVideo, Slots: []Slot{MediaSlot("a"), MediaSlot("b")}}, "Only one video can be attached"},
		{"empty text", Request{Kind: backend.KindText, Text: "  "}, "Post text is required"},
		{"bad visibility", Request{Kind: backend.KindText, Text: "x", Visibility: "friends"}, `visibility must be public or connections, got "friends"`},
		{"unknown kind", Request{Kind: "poll", Text: "x"}, "Unknown post type: poll"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, srv := newPipeline(t)

			_, err := p.Submit(context.Background(), tt.req, nil)
			if err == nil || err.Error() != tt.want {
				t.Errorf("expected %q, got %v", tt.want, err)
			}
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if srv.Total() != 0 {
				t.Errorf("expected no network calls, got %d", srv.Total())
			}
			if st := p.State(); st.Error != tt.want || st.Status != Idle {
				t.Errorf("unexpected state %+v", st)
			}
		})
	}
}

func TestNormalizeLeavesCallerSlots(t *testing.T) {
	slots := []Slot{{MediaID: "a"}, {MediaID: "b"}}

	req, err := normalize(Request{Kind: backend.KindMultiple, Slots: slots})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Slots[0].Name != "file-1" || req.Slots[1].Name != "file-2" {
		t.Errorf("expected generated names, got %+v", req.Slots)
	}
	if slots[0].Name != "" || slots[1].Name != "" {
		t.Errorf("caller's slots were modified: %+v", slots)
	}
}

func TestSubmitVideo(t *testing.T) {
	p, srv := newPipeline(t)
	uploadsByName(srv, nil)
	srv.JSON(http.MethodPost, "/linkedin/video-post/", http.StatusOK, posted)
	path := tu.WriteTempFile(t, "clip.mp4", "not really a video")

	if _, err := p.Submit(context.Background(), Request{Kind: backend.KindVideo, Text: "Launch day\nmore words", Slots: []Slot{FileSlot(path)}}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upload := srv.Calls(http.MethodPost, "/media/upload")[0]
	if upload.Form["media_type"] != "video" || upload.Files["media"] != "clip.mp4" {
		t.Errorf("unexpected upload %v %v", upload.Form, upload.Files)
	}
	call := srv.Calls(http.MethodPost, "/linkedin/video-post/")[0]
	if call.Form["video_id"] != "id-clip.mp4" || call.Form["title"] != "Launch day" {
		t.Errorf("unexpected form %v", call.Form)
	}
}

func TestVideoTitle(t *testing.T) {
	for text, want := range map[string]string{
		"First\nsecond": "First",
		"  padded  ":    "padded",
		"":              "Video Post",
		"\nbody":        "Video Post",
	} {
		if got := VideoTitle(text); got != want {
			t.Errorf("VideoTitle(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestSubmitScheduled(t *testing.T) {
	p, srv := newPipeline(t)
	srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, map[string]any{"success": true, "message": "scheduled"})
	at := time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC)

	if _, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "later", ScheduledAt: at}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := string(srv.Calls(http.MethodPost, "/linkedin/text-post/")[0].Body)
	if !strings.Contains(body, `"scheduled_time":"2026-11-01T09:30:00Z"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestCreateFailure(t *testing.T) {
	t.Run("backend error message is kept", func(t *testing.T) {
		p, srv := newPipeline(t)
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusBadRequest, map[string]string{"detail": "LinkedIn token expired"})

		_, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "x"}, nil)
		if !errors.Is(err, shared.ErrPostFailed) {
			t.Errorf("expected ErrPostFailed, got %v", err)
		}
		if st := p.State(); st.Status != Idle || st.Error != "LinkedIn token expired" {
			t.Errorf("unexpected state %+v", st)
		}

		p.ClearError()
		if p.State().Error != "" {
			t.Error("ClearError should drop the error")
		}
	})

	t.Run("success without post id", func(t *testing.T) {
		p, srv := newPipeline(t)
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, map[string]any{"success": true})

		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "x"}, nil); err == nil {
			t.Fatal("expected an error")
		}
		if st := p.State(); st.Error != "Failed to create post" {
			t.Errorf("unexpected state %+v", st)
		}
	})
}

func TestProgressAndLifecycle(t *testing.T) {
	t.Run("progress never blocks", func(t *testing.T) {
		p, srv := newPipeline(t)
		uploadsByName(srv, nil)
		srv.JSON(http.MethodPost, "/linkedin/image-post/multi/", http.StatusOK, posted)

		progress := make(chan ProgressUpdate)
		done := make(chan error, 1)
		go func() {
			_, err := p.Submit(context.Background(), Request{Kind: backend.KindMultiple, Slots: []Slot{readerSlot("a.png"), readerSlot("b.png")}}, progress)
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("submit blocked on an unread progress channel")
		}
	})

	t.Run("progress reports each task", func(t *testing.T) {
		p, srv := newPipeline(t)
		uploadsByName(srv, nil)
		srv.JSON(http.MethodPost, "/linkedin/image-post/", http.StatusOK, posted)

		progress := make(chan ProgressUpdate, 16)
		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindImage, Slots: []Slot{readerSlot("a.png")}}, progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{Upload, Upload, Create, Done}
		if len(phases) != len(want) {
			t.Fatalf("expected %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d: expected %v, got %v", i, want[i], phases[i])
			}
		}
	})

	t.Run("busy pipeline rejects a second submission", func(t *testing.T) {
		p, srv := newPipeline(t)
		entered, release := make(chan struct{}), make(chan struct{})
		var once sync.Once
		srv.Handle(http.MethodPost, "/linkedin/text-post/", func(w http.ResponseWriter, r *http.Request) {
			once.Do(func() { close(entered) })
			<-release
			tu.WriteJSON(w, http.StatusOK, posted)
		})

		done := make(chan error, 1)
		go func() {
			_, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "first"}, nil)
			done <- err
		}()
		<-entered

		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "second"}, nil); !errors.Is(err, shared.ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("first submission: %v", err)
		}
	})

	t.Run("clear after grace returns to idle", func(t *testing.T) {
		p, srv := newPipeline(t)
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, posted)

		_, _ = p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "x"}, nil)
		p.ClearAfter(10 * time.Millisecond)
		if p.State().Status != Succeeded {
			t.Fatal("expected to stay succeeded during the grace period")
		}

		deadline := time.Now().Add(2 * time.Second)
		for p.State().Status != Idle && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if st := p.State(); st.Status != Idle || st.PostID != "" {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("configured grace resets on its own", func(t *testing.T) {
		srv := tu.NewBackend(t)
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, posted)
		p := New(backend.NewClient(srv.URL, tokenstore.NewMemoryWith("tok")), Options{SuccessGrace: 10 * time.Millisecond})

		if _, err := p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "x"}, nil); err != nil {
			t.Fatalf("submit: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for p.State().Status != Idle && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if st := p.State(); st.Status != Idle {
			t.Errorf("expected idle after the grace period, got %+v", st)
		}
	})

	t.Run("reset clears the batch", func(t *testing.T) {
		p, srv := newPipeline(t)
		srv.JSON(http.MethodPost, "/linkedin/text-post/", http.StatusOK, posted)
		_, _ = p.Submit(context.Background(), Request{Kind: backend.KindText, Text: "x"}, nil)

		p.Reset()
		if st := p.State(); st.Status != Idle || st.BatchID != "" {
			t.Errorf("unexpected state %+v", st)
		}
	})
}
