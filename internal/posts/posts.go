// Package posts turns a composed post into uploads plus exactly one creation request.
//
// Every file slot is uploaded concurrently and the batch waits for all of them. Any failed upload fails the whole
// batch and no post is created; already-uploaded media stays in the library.
package posts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	MaxImages           = 20
	DefaultConcurrency  = 4
	DefaultSuccessGrace = 1500 * time.Millisecond
)

// API is the part of the backend the pipeline needs.
type API interface {
	UploadMedia(ctx context.Context, name string, r io.Reader, mediaType backend.MediaType) (*backend.UploadResult, error)
	CreatePost(ctx context.Context, in backend.PostInput) (*backend.PostResult, error)
}

// Slot is one attachment: a local file to upload, or media already in the library.
type Slot struct {
	Name    string
	Path    string
	Reader  io.Reader
	MediaID string
}

// FileSlot attaches a local file, uploaded on submit.
func FileSlot(path string) Slot { return Slot{Name: filepath.Base(path), Path: path} }

// MediaSlot attaches media already in the library.
func MediaSlot(id string) Slot { return Slot{Name: id, MediaID: id} }

// Request is one post submission.
type Request struct {
	Kind       backend.PostKind
	Text       string
	Title      string
	Visibility string
	Slots      []Slot
	// ScheduledAt, when set, schedules the post instead of publishing it now.
	ScheduledAt time.Time
}

type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskUploading
	TaskDone
	TaskFailed
)

func (s TaskStatus) String() string {
	return [...]string{"pending", "uploading", "done", "failed"}[s]
}

// UploadTask tracks one slot of a batch. Index is the slot position.
type UploadTask struct {
	Index   int
	Name    string
	Status  TaskStatus
	MediaID string
	Error   string
}

type Status int

const (
	Idle Status = iota
	Uploading
	Posting
	Succeeded
)

func (s Status) String() string {
	return [...]string{"idle", "uploading", "posting", "succeeded"}[s]
}

// State is a snapshot of the pipeline.
type State struct {
	Status  Status
	BatchID string
	Tasks   []UploadTask
	PostID  string
	Error   string
}

// Busy reports whether a submission is in flight.
func (s State) Busy() bool { return s.Status == Uploading || s.Status == Posting }

// BatchError lists every failed upload of a batch.
type BatchError struct {
	Failed []UploadTask
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, t := range e.Failed {
		parts[i] = fmt.Sprintf("File %d: %s", t.Index+1, t.Error)
	}
	return fmt.Sprintf("Failed to upload %d file(s): %s", len(e.Failed), strings.Join(parts, ", "))
}

func (e *BatchError) Unwrap() error { return shared.ErrUploadFailed }

// Options configures a [Pipeline].
type Options struct {
	Concurrency int
	// RateLimit caps upload starts per second; zero means unlimited.
	RateLimit float64
	// SuccessGrace, when positive, returns a succeeded pipeline to Idle after that long.
	SuccessGrace time.Duration
	Logger       *log.Logger
}

// Pipeline validates, uploads and publishes one post at a time. It is safe for concurrent use.
type Pipeline struct {
	api     API
	limiter *rate.Limiter
	workers int
	grace   time.Duration
	logger  *log.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	resetT    *time.Timer
	listeners map[int]func(State)
	nextID    int
}

// New creates an idle Pipeline. Zero options fall back to [DefaultConcurrency] and unlimited pacing.
func New(api API, opts Options) *Pipeline {
	workers := opts.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Pipeline{
		api:       api,
		limiter:   rate.NewLimiter(limit, workers),
		workers:   workers,
		grace:     opts.SuccessGrace,
		logger:    shared.WithLogger(opts.Logger, "component", "posts"),
		listeners: map[int]func(State){},
	}
}

// State returns a copy of the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return snapshot(p.state)
}

// OnChange registers fn for every transition and returns a function that removes it.
func (p *Pipeline) OnChange(fn func(State)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Submit validates req, uploads its files and creates the post. progress may be nil.
func (p *Pipeline) Submit(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*backend.PostResult, error) {
	req, err := normalize(req)
	if err != nil {
		p.fail(0, err.Error(), false)
		return nil, err
	}

	gen, err := p.start(req)
	if err != nil {
		return nil, err
	}
	batchID := p.State().BatchID
	p.logger.Info("submitting post", "batch", batchID, "kind", req.Kind, "slots", len(req.Slots), "scheduled", !req.ScheduledAt.IsZero())

	ids, err := p.uploadAll(ctx, gen, req, progress)
	if err != nil {
		p.fail(gen, err.Error(), true)
		return nil, err
	}

	p.update(gen, func(s *State) { s.Status = Posting })
	sendProgress(progress, creatingUpdate(string(req.Kind)))

	res, err := p.api.CreatePost(ctx, backend.PostInput{
		Kind:        req.Kind,
		Text:        req.Text,
		Title:       req.Title,
		Visibility:  req.Visibility,
		MediaIDs:    ids,
		ScheduledAt: req.ScheduledAt,
	})
	if err == nil && (res.Post == nil || res.Post.ID == "") && req.ScheduledAt.IsZero() {
		err = &Error{Message: firstNonEmpty(res.Error, "Failed to create post"), Kind: shared.ErrPostFailed}
	}
	if err != nil {
		msg := backend.Message(err)
		p.fail(gen, msg, true)
		return nil, fmt.Errorf("%w: %w", shared.ErrPostFailed, err)
	}

	postID := ""
	if res.Post != nil {
		postID = res.Post.ID
	}
	p.update(gen, func(s *State) {
		s.Status = Succeeded
		s.PostID = postID
	})
	sendProgress(progress, doneUpdate(postID))
	p.logger.Info("post created", "batch", batchID, "post", postID)
	if p.grace > 0 {
		p.ClearAfter(p.grace)
	}
	return res, nil
}

// Reset discards the batch and any error.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.stopGrace()
	p.mu.Unlock()
	p.update(gen, func(s *State) { *s = State{} })
}

func (p *Pipeline) ClearError() {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()
	p.update(gen, func(s *State) { s.Error = "" })
}

// ClearAfter resets a succeeded pipeline once grace has passed. A newer submission cancels it.
func (p *Pipeline) ClearAfter(grace time.Duration) {
	if grace <= 0 {
		grace = DefaultSuccessGrace
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Status != Succeeded {
		return
	}
	gen := p.gen
	p.stopGrace()
	p.resetT = time.AfterFunc(grace, func() {
		p.update(gen, func(s *State) { *s = State{} })
	})
}

func (p *Pipeline) start(req Request) (uint64, error) {
	p.mu.Lock()
	if p.state.Busy() {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: a post is already being submitted", shared.ErrBusy)
	}
	p.stopGrace()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	tasks := make([]UploadTask, len(req.Slots))
	for i, s := range req.Slots {
		tasks[i] = UploadTask{Index: i, Name: s.Name}
		if s.MediaID != "" {
			tasks[i].Status = TaskDone
			tasks[i].MediaID = s.MediaID
		}
	}
	p.update(gen, func(s *State) {
		*s = State{Status: Uploading, BatchID: shared.GenerateID(), Tasks: tasks}
	})
	return gen, nil
}

func (p *Pipeline) uploadAll(ctx context.Context, gen uint64, req Request, progress chan<- ProgressUpdate) ([]string, error) {
	mediaType := backend.MediaImage
	if req.Kind == backend.KindVideo {
		mediaType = backend.MediaVideo
	}

	total := len(req.Slots)
	results := make([]UploadTask, total)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, slot := range req.Slots {
		results[i] = UploadTask{Index: i, Name: slot.Name, Status: TaskDone, MediaID: slot.MediaID}
		if slot.MediaID != "" {
			continue
		}

		g.Go(func() error {
			task := UploadTask{Index: i, Name: slot.Name, Status: TaskUploading}
			p.setTask(gen, task)
			sendProgress(progress, uploadStartedUpdate(task, total))

			id, err := p.upload(ctx, slot, mediaType)
			if err != nil {
				task.Status, task.Error = TaskFailed, backend.Message(err)
				p.logger.Warn("upload failed", "file", slot.Name, "err", err)
			} else {
				task.Status, task.MediaID = TaskDone, id
			}
			results[i] = task
			p.setTask(gen, task)
			sendProgress(progress, uploadFinishedUpdate(task, total))
			// Never cancel siblings: every slot reports its own outcome.
			return nil
		})
	}
	_ = g.Wait()

	var failed []UploadTask
	ids := make([]string, 0, total)
	for _, t := range results {
		if t.Status == TaskFailed {
			failed = append(failed, t)
			continue
		}
		ids = append(ids, t.MediaID)
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(a, b int) bool { return failed[a].Index < failed[b].Index })
		return nil, &BatchError{Failed: failed}
	}
	if len(ids) != total {
		return nil, &Error{Message: fmt.Sprintf("Only %d out of %d files uploaded successfully", len(ids), total), Kind: shared.ErrUploadFailed}
	}
	if req.Kind == backend.KindMultiple && len(ids) < 2 {
		msg := fmt.Sprintf("Only %d image(s) uploaded successfully. At least 2 images required.", len(ids))
		return nil, &Error{Message: msg, Kind: shared.ErrUploadFailed}
	}
	return ids, nil
}

func (p *Pipeline) upload(ctx context.Context, slot Slot, mediaType backend.MediaType) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	r := slot.Reader
	if r == nil {
		f, err := os.Open(slot.Path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	res, err := p.api.UploadMedia(ctx, slot.Name, r, mediaType)
	if err != nil {
		return "", err
	}
	return res.MediaID, nil
}

func (p *Pipeline) setTask(gen uint64, t UploadTask) {
	p.update(gen, func(s *State) {
		if t.Index < len(s.Tasks) {
			s.Tasks[t.Index] = t
		}
	})
}

// fail records msg. Failures before a batch starts keep whatever status the pipeline had.
func (p *Pipeline) fail(gen uint64, msg string, started bool) {
	if !started {
		p.mu.Lock()
		gen = p.gen
		busy := p.state.Busy()
		p.mu.Unlock()
		if busy {
			return
		}
	}
	p.update(gen, func(s *State) {
		if started {
			s.Status = Idle
		}
		s.Error = msg
	})
}

func (p *Pipeline) update(gen uint64, fn func(*State)) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	fn(&p.state)
	snap := snapshot(p.state)
	listeners := make([]func(State), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return true
}

func (p *Pipeline) stopGrace() {
	if p.resetT != nil {
		p.resetT.Stop()
		p.resetT = nil
	}
}

func snapshot(s State) State {
	s.Tasks = append([]UploadTask(nil), s.Tasks...)
	return s
}

func sendProgress(ch chan<- ProgressUpdate, u ProgressUpdate) {
	if ch == nil {
		return
	}
	select {
	case ch <- u:
	default:
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
