// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
)

// Call is one request observed by a [Backend].
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Form holds multipart text fields, Files maps each file field to its file name.
	Form  map[string]string
	Files map[string]string
}

// Backend is an httptest server standing in for the postsiva API. Routes are keyed by "METHOD /path".
type Backend struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []Call
}

// NewBackend starts a fake backend that is closed when t finishes. Unrouted requests get a 404.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{routes: make(map[string]http.HandlerFunc)}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	call := Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			call.Form = make(map[string]string)
			for k, v := range r.MultipartForm.Value {
				call.Form[k] = strings.Join(v, ",")
			}
			call.Files = make(map[string]string)
			for k, fhs := range r.MultipartForm.File {
				if len(fhs) > 0 {
					call.Files[k] = fhs[0].Filename
				}
			}
		}
	}

	b.mu.Lock()
	b.calls = append(b.calls, call)
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
		return
	}
	h(w, r)
}

// Handle registers h for method and path, replacing any earlier handler.
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = h
}

// JSON registers a fixed JSON response.
func (b *Backend) JSON(method, path string, status int, body any) {
	b.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Calls returns the recorded calls to method and path, in arrival order.
func (b *Backend) Calls(method, path string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Call
	for _, c := range b.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Count is len(b.Calls(method, path)).
func (b *Backend) Count(method, path string) int {
	return len(b.Calls(method, path))
}

// Total is the number of requests seen on any route.
func (b *Backend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// WriteJSON writes body as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// URLLocation is an in-memory address that records replacements.
type URLLocation struct {
	mu       sync.Mutex
	current  *url.URL
	Replaced []string
	Err      error
}

func NewURLLocation(t *testing.T, raw string) *URLLocation {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("bad test URL %q: %v", raw, err)
	}
	return &URLLocation{current: u}
}

func (l *URLLocation) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.current
	return &u
}

func (l *URLLocation) Replace(u *url.URL) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	next := *u
	l.current = &next
	l.Replaced = append(l.Replaced, u.String())
	return nil
}

// RecordingNavigator records redirects. Setting ReplaceErr makes every Replace fail.
type RecordingNavigator struct {
	mu         sync.Mutex
	current    string
	Replaces   []string
	Forces     []string
	ReplaceErr error
	// Stay keeps current unchanged after a successful Replace, simulating a navigation that never lands.
	Stay bool
}

func NewRecordingNavigator(start string) *RecordingNavigator {
	return &RecordingNavigator{current: start}
}

func (n *RecordingNavigator) Replace(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Replaces = append(n.Replaces, path)
	if n.ReplaceErr != nil {
		return n.ReplaceErr
	}
	if !n.Stay {
		n.current = path
	}
	return nil
}

func (n *RecordingNavigator) Force(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Forces = append(n.Forces, path)
	n.current = path
}

func (n *RecordingNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Redirects returns copies of the recorded replace and force targets.
func (n *RecordingNavigator) Redirects() (replaces, forces []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Replaces...), append([]string(nil), n.Forces...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// WriteTempFile writes content to name inside a fresh temp dir and returns its path.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := t.TempDir() + string(os.PathSeparator) + name
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
