// Package schedule lists and edits posts waiting for their publish time. Creating one goes through the post
// pipeline with a schedule time set.
package schedule

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
)

const Platform = "linkedin"

// Status values understood by the listing endpoint.
const (
	Scheduled = "scheduled"
	Published = "published"
	Failed    = "failed"
)

// API is the part of the backend the board needs.
type API interface {
	ScheduledPosts(ctx context.Context, q backend.ScheduleQuery) (*backend.ScheduledPage, error)
	UpdateScheduledPost(ctx context.Context, id string, u backend.ScheduleUpdate) error
	CancelScheduledPost(ctx context.Context, id string) error
}

// Query selects which scheduled posts the board lists.
type Query struct {
	Status string
	Limit  int
	Offset int
}

// Update changes a scheduled post. Zero fields are left alone.
type Update struct {
	ScheduledTime time.Time
	Text          string
	Visibility    string
}

func (u Update) wire() (backend.ScheduleUpdate, error) {
	var out backend.ScheduleUpdate
	if !u.ScheduledTime.IsZero() {
		out.ScheduledTime = u.ScheduledTime.UTC().Format(time.RFC3339)
	}
	if u.Text != "" || u.Visibility != "" {
		out.PostData = &backend.ScheduledPostData{Text: u.Text}
		if u.Visibility != "" {
			out.PostData.Visibility = backend.WireVisibility(u.Visibility)
		}
	}
	if out.ScheduledTime == "" && out.PostData == nil {
		return out, fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}
	return out, nil
}

// State is a snapshot of the board.
type State struct {
	Posts     []backend.ScheduledPost
	Total     int
	Query     Query
	IsLoading bool
	Error     string
}

// Board lists scheduled posts and applies edits, reloading after each one.
type Board struct {
	api    API
	logger *log.Logger

	mu    sync.Mutex
	state State
	gen   uint64
}

// New creates an empty Board.
func New(api API, logger *log.Logger) *Board {
	return &Board{
		api:    api,
		logger: shared.WithLogger(logger, "component", "schedule"),
		state:  State{Query: Query{Status: Scheduled}},
	}
}

// State returns a copy of the current state.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	s.Posts = slices.Clone(s.Posts)
	return s
}

// Load replaces the board with the posts matching q. An empty status means scheduled.
func (b *Board) Load(ctx context.Context, q Query) error {
	if q.Status == "" {
		q.Status = Scheduled
	}
	q.Status = strings.ToLower(q.Status)

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.state.Query = q
	b.state.IsLoading = true
	b.state.Error = ""
	b.mu.Unlock()

	page, err := b.api.ScheduledPosts(ctx, backend.ScheduleQuery{Platform: Platform, Status: q.Status, Limit: q.Limit, Offset: q.Offset})

	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return nil
	}
	b.state.IsLoading = false
	if err != nil {
		b.state.Error = backend.Message(err)
		return err
	}
	b.state.Posts = page.Posts
	b.state.Total = max(page.Total, len(page.Posts))
	b.logger.Debug("loaded scheduled posts", "status", q.Status, "count", len(page.Posts))
	return nil
}

// Update patches post id and reloads the board.
func (b *Board) Update(ctx context.Context, id string, u Update) error {
	wire, err := u.wire()
	if err != nil {
		return err
	}
	if err := b.api.UpdateScheduledPost(ctx, id, wire); err != nil {
		b.fail(err)
		return err
	}
	b.logger.Info("updated scheduled post", "id", id)
	return b.Load(ctx, b.query())
}

// Cancel deletes post id before it publishes and reloads the board.
func (b *Board) Cancel(ctx context.Context, id string) error {
	if err := b.api.CancelScheduledPost(ctx, id); err != nil {
		b.fail(err)
		return err
	}
	b.logger.Info("cancelled scheduled post", "id", id)
	return b.Load(ctx, b.query())
}

func (b *Board) ClearError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Error = ""
}

func (b *Board) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Error = backend.Message(err)
}

func (b *Board) query() Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Query
}
