// Package media keeps a paginated, filterable copy of the remote media library.
//
// Pages are appended in order. A reset (first load, filter change, reload after a mutation) discards the copy and
// any response still in flight for it.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const DefaultPageSize = 12

// Filter narrows the library to one media type.
type Filter string

const (
	All    Filter = "all"
	Images Filter = "image"
	Videos Filter = "video"
)

// ParseFilter accepts all, image(s) and video(s).
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "image", "images":
		return Images, nil
	case "video", "videos":
		return Videos, nil
	}
	return "", fmt.Errorf("%w: unknown media filter %q", shared.ErrInvalidArgument, s)
}

func (f Filter) mediaType() backend.MediaType {
	if f == All || f == "" {
		return ""
	}
	return backend.MediaType(f)
}

// Status is the load state of the library.
type Status int

const (
	Idle Status = iota
	Loading
	Errored
)

func (s Status) String() string {
	return [...]string{"idle", "loading", "errored"}[s]
}

// State is a snapshot of the cached page window.
type State struct {
	Status    Status
	Items     []backend.MediaItem
	Cursor    Cursor
	Filter    Filter
	IsLoading bool
	Error     string
}

// API is the part of the backend the library needs.
type API interface {
	ListMedia(ctx context.Context, q backend.MediaQuery) (*backend.MediaPage, error)
	DeleteMedia(ctx context.Context, id string) error
	BulkDeleteMedia(ctx context.Context, ids []string) (*backend.DeleteResult, error)
	UploadMedia(ctx context.Context, name string, r io.Reader, mediaType backend.MediaType) (*backend.UploadResult, error)
	CleanupMedia(ctx context.Context) (*backend.DeleteResult, error)
}

// Mirror receives every change to the loaded list. Its errors are logged and otherwise ignored.
type Mirror interface {
	ReplaceAll(ctx context.Context, items []backend.MediaItem) error
	Append(ctx context.Context, items []backend.MediaItem, offset int) error
	Remove(ctx context.Context, ids []string) error
}

// Options configures a [Library]. Zero values fall back to the defaults.
type Options struct {
	PageSize    int
	Concurrency int
	RateLimit   float64
	Mirror      Mirror
	Logger      *log.Logger
}

// Library caches the media collection page by page. It is safe for concurrent use.
type Library struct {
	api     API
	opts    Options
	limiter *rate.Limiter
	logger  *log.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	listeners map[int]func(State)
	nextID    int
}

// New creates an empty Library on the All filter.
func New(api API, opts Options) *Library {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Library{
		api:       api,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, opts.Concurrency),
		logger:    shared.WithLogger(opts.Logger, "component", "media"),
		state:     State{Filter: All, Cursor: Cursor{Limit: opts.PageSize}},
		listeners: map[int]func(State){},
	}
}

// State returns a copy of the current state.
func (l *Library) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot(l.state)
}

// OnChange registers fn for every transition and returns a function that removes it.
func (l *Library) OnChange(fn func(State)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Load fetches a page. With reset the list and cursor start over, superseding any load in flight; otherwise the
// next page is appended.
func (l *Library) Load(ctx context.Context, reset bool) error {
	l.mu.Lock()
	if !reset && l.state.IsLoading {
		l.mu.Unlock()
		return fmt.Errorf("%w: media page already loading", shared.ErrBusy)
	}
	l.gen++
	gen := l.gen
	filter := l.state.Filter
	offset := 0
	if !reset {
		offset = l.state.Cursor.Next()
	}
	l.mu.Unlock()

	l.commit(gen, func(s *State) {
		if reset {
			s.Items = nil
			s.Cursor = Cursor{Limit: l.opts.PageSize}
		}
		s.Status = Loading
		s.IsLoading = true
		s.Error = ""
	})

	page, err := l.api.ListMedia(ctx, backend.MediaQuery{MediaType: filter.mediaType(), Limit: l.opts.PageSize, Offset: offset})
	if err != nil {
		msg := backend.Message(err)
		l.commit(gen, func(s *State) {
			s.Status = Errored
			s.IsLoading = false
			s.Error = msg
		})
		return err
	}

	applied := l.commit(gen, func(s *State) {
		s.Items = append(s.Items, page.Media...)
		s.Cursor = cursorFrom(page, offset, l.opts.PageSize)
		s.Status = Idle
		s.IsLoading = false
	})
	if !applied {
		l.logger.Debug("dropped stale media page", "offset", offset)
		return nil
	}

	l.logger.Debug("loaded media page", "filter", filter, "offset", offset, "count", len(page.Media), "total", page.Total)
	if reset {
		l.mirror(func(m Mirror) error { return m.ReplaceAll(ctx, page.Media) })
	} else {
		l.mirror(func(m Mirror) error { return m.Append(ctx, page.Media, offset) })
	}
	return nil
}

// LoadMore appends the next page. It reports false without a request when a load is in flight or nothing is left.
func (l *Library) LoadMore(ctx context.Context) (bool, error) {
	l.mu.Lock()
	skip := l.state.IsLoading || !l.state.Cursor.HasMore
	l.mu.Unlock()
	if skip {
		return false, nil
	}
	if err := l.Load(ctx, false); err != nil {
		return false, err
	}
	return true, nil
}

// SetFilter switches the filter and reloads from the first page.
func (l *Library) SetFilter(ctx context.Context, f Filter) error {
	l.mu.Lock()
	l.state.Filter = f
	l.mu.Unlock()
	return l.Load(ctx, true)
}

// Delete removes id locally, then remotely. A remote failure is reported but the item stays removed.
func (l *Library) Delete(ctx context.Context, id string) error {
	l.removeLocal([]string{id})
	if err := l.api.DeleteMedia(ctx, id); err != nil {
		l.recordError(err)
		return err
	}
	l.logger.Info("deleted media", "id", id)
	return nil
}

// BulkDelete removes ids locally, then in one remote request. It returns the backend's deleted count.
func (l *Library) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no media selected", shared.ErrMissingArgument)
	}
	l.removeLocal(ids)

	res, err := l.api.BulkDeleteMedia(ctx, ids)
	if err != nil {
		l.recordError(err)
		return 0, err
	}
	l.logger.Info("bulk deleted media", "requested", len(ids), "deleted", res.DeletedCount)
	return res.DeletedCount, nil
}

// UploadOutcome is the result for one file of [Library.Upload].
type UploadOutcome struct {
	Path    string
	MediaID string
	Err     error
}

// Upload stores files concurrently, then reloads the first page. Every file is attempted.
func (l *Library) Upload(ctx context.Context, paths []string) ([]UploadOutcome, error) {
	out := make([]UploadOutcome, len(paths))

	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, path := range paths {
		out[i].Path = path
		g.Go(func() error {
			id, err := l.uploadOne(ctx, path)
			out[i].MediaID, out[i].Err = id, err
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, o := range out {
		if o.Err != nil {
			failed = append(failed, fmt.Sprintf("File %d: %s", i+1, backend.Message(o.Err)))
		}
	}

	reloadErr := l.Load(ctx, true)
	if len(failed) > 0 {
		msg := fmt.Sprintf("Failed to upload %d file(s): %s", len(failed), strings.Join(failed, ", "))
		l.commit(l.generation(), func(s *State) { s.Error = msg })
		return out, fmt.Errorf("%w: %s", shared.ErrUploadFailed, msg)
	}
	return out, reloadErr
}

// Cleanup asks the backend to purge expired media, then reloads.
func (l *Library) Cleanup(ctx context.Context) (int, error) {
	res, err := l.api.CleanupMedia(ctx)
	if err != nil {
		l.recordError(err)
		return 0, err
	}
	l.logger.Info("cleaned up media", "deleted", res.DeletedCount)
	return res.DeletedCount, l.Load(ctx, true)
}

// ClearError drops the recorded error and leaves the Errored status.
func (l *Library) ClearError() {
	l.commit(l.generation(), func(s *State) {
		s.Error = ""
		if s.Status == Errored {
			s.Status = Idle
		}
	})
}

func (l *Library) uploadOne(ctx context.Context, path string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := sniff(path, f)
	if err != nil {
		return "", err
	}
	res, err := l.api.UploadMedia(ctx, filepath.Base(path), f, mt)
	if err != nil {
		return "", err
	}
	return res.MediaID, nil
}

// sniff picks the media type from the extension, falling back to the leading bytes. f is rewound.
func sniff(path string, f io.ReadSeeker) (backend.MediaType, error) {
	if mt, err := backend.DetectMediaType(path); err == nil {
		return mt, nil
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	switch ct := http.DetectContentType(head[:n]); {
	case strings.HasPrefix(ct, "image/"):
		return backend.MediaImage, nil
	case strings.HasPrefix(ct, "video/"):
		return backend.MediaVideo, nil
	default:
		return "", fmt.Errorf("%w: %s is %s, not an image or video", shared.ErrInvalidInput, filepath.Base(path), ct)
	}
}

func (l *Library) removeLocal(ids []string) {
	removed := 0
	l.commit(l.generation(), func(s *State) {
		before := len(s.Items)
		s.Items = slices.DeleteFunc(s.Items, func(it backend.MediaItem) bool { return slices.Contains(ids, it.ID) })
		removed = before - len(s.Items)
		s.Cursor = s.Cursor.removed(removed)
	})
	if removed > 0 {
		l.mirror(func(m Mirror) error { return m.Remove(context.Background(), ids) })
	}
}

func (l *Library) recordError(err error) {
	msg := backend.Message(err)
	l.commit(l.generation(), func(s *State) { s.Error = msg })
}

func (l *Library) mirror(fn func(Mirror) error) {
	if l.opts.Mirror == nil {
		return
	}
	if err := fn(l.opts.Mirror); err != nil {
		l.logger.Warn("media mirror update failed", "err", err)
	}
}

func (l *Library) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *Library) commit(gen uint64, fn func(*State)) bool {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return false
	}
	fn(&l.state)
	snap := snapshot(l.state)
	listeners := make([]func(State), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

func snapshot(s State) State {
	s.Items = slices.Clone(s.Items)
	return s
}
