// package backend is a typed client for the postsiva REST API.
//
// Requests that need a session attach the bearer credential read fresh from a [tokenstore.Store] on every call.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://backend.postsiva.com"

// Client talks to the backend. The zero value is not usable; see [NewClient].
type Client struct {
	baseURL string
	store   tokenstore.Store
	// anon sends requests without credentials, authed wraps the same transport with the bearer source.
	anon   *http.Client
	authed *http.Client
	logger *log.Logger
}

// Option customises a [Client].
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is reused for authenticated calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.anon = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.anon.Timeout = d
		}
	}
}

// NewClient creates a backend client rooted at baseURL, authenticating with the credential in store.
func NewClient(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		anon:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.DiscardLogger()
	}

	base := c.anon.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.authed = &http.Client{
		Timeout:   c.anon.Timeout,
		Transport: &oauth2.Transport{Source: tokenstore.Source(store), Base: base},
	}
	return c
}

// BaseURL is the API root, without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one call. Exactly one of jsonBody and form may be set.
type request struct {
	method   string
	path     string
	query    any
	jsonBody any
	form     *multipartForm
	anon     bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	endpoint := c.baseURL + r.path
	if r.query != nil {
		values, err := query.Values(r.query)
		if err != nil {
			return fmt.Errorf("%w: encoding query: %v", shared.ErrInvalidInput, err)
		}
		if encoded := values.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.jsonBody != nil:
		data, err := json.Marshal(r.jsonBody)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case r.form != nil:
		data, ct, err := r.form.encode()
		if err != nil {
			return err
		}
		body = data
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	hc := c.authed
	if r.anon {
		hc = c.anon
	}

	start := time.Now()
	err = c.send(hc, req, out)
	c.logger.Debug("backend request", "method", r.method, "path", r.path, "elapsed", time.Since(start), "err", err)
	return err
}

// send performs req on hc and decodes a 2xx JSON body into out.
func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return shared.ErrNotAuthenticated
		}
		return fmt.Errorf("%w: %s %s: %w", shared.ErrAPIRequest, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnexpected, req.URL.Path, err)
	}
	return nil
}

// multipartForm is a set of text fields plus at most one file part.
type multipartForm struct {
	fields   [][2]string
	fileKey  string
	fileName string
	file     io.Reader
}

func (f *multipartForm) set(key, value string) *multipartForm {
	f.fields = append(f.fields, [2]string{key, value})
	return f
}

func (f *multipartForm) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", kv[0], err)
		}
	}

	if f.file != nil {
		part, err := w.CreateFormFile(f.fileKey, f.fileName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.file); err != nil {
			return nil, "", fmt.Errorf("failed to copy %s: %w", f.fileName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
