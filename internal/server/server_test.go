package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/postsiva/internal/session"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
)

const callbackPath = "/auth/google/callback"

func newCallback(t *testing.T, store tokenstore.Store) (*CallbackHandler, *httptest.Server) {
	t.Helper()
	capture := session.NewCapture(store, nil)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	h, err := NewCallbackHandler(srv.URL, callbackPath, capture.Run)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	router := NewBasicRouter()
	router.Use(Recover(shared.DiscardLogger()))
	router.Handler(h)
	mux.Handle("/", router)
	return h, srv
}

func TestCallbackHandler(t *testing.T) {
	t.Run("captures, strips the address and reports once", func(t *testing.T) {
		store := tokenstore.NewMemory()
		h, srv := newCallback(t, store)

		resp, err := http.Get(srv.URL + callbackPath + "?success=true&token=goog&user=Ada&email=ada%40example.com&next=%2Fdashboard")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 after redirect, got %d", resp.StatusCode)
		}
		if q := resp.Request.URL.Query(); q.Has("token") || q.Has("success") || q.Get("next") != "/dashboard" {
			t.Errorf("final address still carries capture parameters: %s", resp.Request.URL)
		}
		if !strings.Contains(string(body), "Signed in as Ada") {
			t.Errorf("unexpected page %s", body)
		}
		if tok, _ := store.Get(); tok != "goog" {
			t.Errorf("expected captured credential, got %q", tok)
		}

		select {
		case res := <-h.Result():
			if !res.Capture.Success || res.Capture.Email != "ada@example.com" || res.Err != nil {
				t.Errorf("unexpected result %+v", res)
			}
		case <-time.After(time.Second):
			t.Fatal("no result delivered")
		}
		if _, open := <-h.Result(); open {
			t.Error("result channel should be closed after one value")
		}
	})

	t.Run("replayed credential is refused", func(t *testing.T) {
		h, srv := newCallback(t, tokenstore.NewMemory())
		target := srv.URL + callbackPath + "?success=true&token=goog"

		resp, _ := http.Get(target)
		resp.Body.Close()
		<-h.Result()

		resp, err := http.Get(target)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", resp.StatusCode)
		}
	})

	t.Run("failed login reports the reason", func(t *testing.T) {
		store := tokenstore.NewMemory()
		h, srv := newCallback(t, store)

		resp, err := http.Get(srv.URL + callbackPath + "?success=false&error=access_denied")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", resp.StatusCode)
		}

		res := <-h.Result()
		if !errors.Is(res.Err, shared.ErrAuthFailed) || !strings.Contains(res.Err.Error(), "access_denied") {
			t.Errorf("unexpected result %+v", res)
		}
		if tokenstore.Has(store) {
			t.Error("nothing should be stored")
		}
	})

	t.Run("bad origin", func(t *testing.T) {
		if _, err := NewCallbackHandler("::", callbackPath, nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected invalid config, got %v", err)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	t.Run("wait returns the result", func(t *testing.T) {
		capture := session.NewCapture(tokenstore.NewMemory(), nil)
		h, err := NewCallbackHandler("http://127.0.0.1", callbackPath, capture.Run)
		if err != nil {
			t.Fatal(err)
		}
		s, err := Listen("127.0.0.1:0", h, nil)
		if err != nil {
			t.Fatalf("listen: %v", err)
		}

		go func() {
			resp, err := http.Get("http://" + s.Addr() + callbackPath + "?success=true&token=t1")
			if err == nil {
				resp.Body.Close()
			}
		}()

		res, err := s.Wait(context.Background(), 5*time.Second)
		if err != nil || res.Capture.Token != "t1" {
			t.Errorf("unexpected result %+v %v", res, err)
		}
	})

	t.Run("wait times out", func(t *testing.T) {
		h, _ := NewCallbackHandler("http://127.0.0.1", callbackPath, func(session.Location) (session.CaptureResult, error) {
			return session.CaptureResult{}, nil
		})
		s, err := Listen("127.0.0.1:0", h, nil)
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		if _, err := s.Wait(context.Background(), 20*time.Millisecond); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected timeout, got %v", err)
		}
	})
}

func TestRouter(t *testing.T) {
	router := NewBasicRouter()
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	router.Use(mark("first"), mark("second"), Recover(shared.DiscardLogger()))
	router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 from recovered panic, got %d", rec.Code)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware ran out of order: %v", order)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boom", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
