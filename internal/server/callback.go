package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/postsiva/internal/session"
	"github.com/desertthunder/postsiva/internal/shared"
)

// CaptureFunc consumes the redirect location, normally by booting the orchestrator with it.
type CaptureFunc func(loc session.Location) (session.CaptureResult, error)

// CallbackResult is delivered once per handler.
type CallbackResult struct {
	Capture session.CaptureResult
	Err     error
}

// CallbackHandler serves the login redirect and reports the first capture on [CallbackHandler.Result].
type CallbackHandler struct {
	path    string
	origin  *url.URL
	capture CaptureFunc

	mu       sync.Mutex
	captured bool
	result   CallbackResult
	once     sync.Once
	results  chan CallbackResult
}

// NewCallbackHandler serves path. origin is the scheme and host the browser reached the listener on.
func NewCallbackHandler(origin, path string, capture CaptureFunc) (*CallbackHandler, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: callback origin %q", shared.ErrInvalidConfig, origin)
	}
	return &CallbackHandler{
		path:    path,
		origin:  u,
		capture: capture,
		results: make(chan CallbackResult, 1),
	}, nil
}

func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// Result receives exactly one value and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	first := !h.captured
	h.captured = true
	h.mu.Unlock()

	if first {
		loc := &requestLocation{current: h.absolute(r.URL)}
		res, err := h.capture(loc)

		h.mu.Lock()
		h.result = CallbackResult{Capture: res, Err: err}
		h.mu.Unlock()

		if loc.replaced != nil {
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, loc.replaced.RequestURI(), http.StatusSeeOther)
			return
		}
		h.finish(w, r)
		return
	}

	if r.URL.Query().Has("token") {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.finish(w, r)
}

func (h *CallbackHandler) finish(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	res := h.result
	h.mu.Unlock()

	if !res.Capture.Success && res.Err == nil {
		res.Err = fmt.Errorf("%w: %s", shared.ErrAuthFailed, failureReason(r.URL.Query()))
	}
	h.once.Do(func() {
		h.results <- res
		close(h.results)
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	status := http.StatusOK
	if res.Err != nil && !res.Capture.Success {
		status = http.StatusUnauthorized
	}
	w.WriteHeader(status)
	_ = page.Execute(w, res)
}

func (h *CallbackHandler) absolute(u *url.URL) *url.URL {
	abs := *u
	abs.Scheme = h.origin.Scheme
	abs.Host = h.origin.Host
	return &abs
}

func failureReason(q url.Values) string {
	for _, k := range []string{"error_description", "error", "message"} {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return "Google login did not return a credential"
}

// requestLocation is the callback request seen as a [session.Location].
type requestLocation struct {
	current  *url.URL
	replaced *url.URL
}

func (l *requestLocation) URL() *url.URL {
	u := *l.current
	return &u
}

func (l *requestLocation) Replace(u *url.URL) error {
	next := *u
	l.current = &next
	l.replaced = &next
	return nil
}

var page = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>postsiva</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f3f6f8; }
        .card { text-align: center; background: white; padding: 2rem;
                border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #0a66c2; }
        .fail { color: #b42318; }
        p { color: #555; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
    {{- if .Capture.Success }}
        <h1 class="ok">Signed in{{ with .Capture.User }} as {{ . }}{{ end }}</h1>
        <p>You can close this window and return to the terminal.</p>
    {{- else }}
        <h1 class="fail">Sign-in failed</h1>
        <p>{{ with .Err }}{{ .Error }}{{ end }}</p>
    {{- end }}
    </div>
</body>
</html>
`))
