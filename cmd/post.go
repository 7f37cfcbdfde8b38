package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/posts"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/urfave/cli/v3"
)

// Post uploads the attached files and creates the post, or schedules it when --at is set.
func (r *Runner) Post(ctx context.Context, cmd *cli.Command) error {
	req := posts.Request{
		Kind:       backend.PostKind(strings.ToLower(cmd.String("kind"))),
		Text:       cmd.String("text"),
		Title:      cmd.String("title"),
		Visibility: cmd.String("visibility"),
	}
	for _, path := range cmd.StringSlice("file") {
		req.Slots = append(req.Slots, posts.FileSlot(shared.ExpandPath(path)))
	}
	for _, id := range cmd.StringSlice("media") {
		req.Slots = append(req.Slots, posts.MediaSlot(id))
	}
	if at := cmd.String("at"); at != "" {
		when, err := parseWhen(at, time.Now())
		if err != nil {
			return err
		}
		req.ScheduledAt = when
	}

	orch, err := r.enter(ctx, guard.Post)
	if err != nil {
		return err
	}
	defer orch.Close()

	client, err := r.backendClient()
	if err != nil {
		return err
	}
	pipeline := posts.New(client, posts.Options{
		Concurrency:  r.config.Upload.Concurrency,
		RateLimit:    r.config.Upload.RateLimit,
		SuccessGrace: r.config.Posts.SuccessGrace.Duration,
		Logger:       r.logger,
	})

	progress := make(chan posts.ProgressUpdate, 32)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range progress {
			r.printProgress(u)
		}
	}()

	res, err := pipeline.Submit(ctx, req, progress)
	close(progress)
	<-printed

	if err != nil {
		if msg := pipeline.State().Error; msg != "" {
			return fmt.Errorf("%w: %s", shared.ErrPostFailed, msg)
		}
		return err
	}

	if !req.ScheduledAt.IsZero() {
		return r.writePlain("✓ Post scheduled for %s\n", req.ScheduledAt.Local().Format(time.RFC1123))
	}
	r.writePlain("✓ Posted to LinkedIn\n")
	if res.Post != nil {
		r.writePlain("Post: %s\n", res.Post.ID)
		if res.Post.URL != "" {
			r.writePlain("URL: %s\n", res.Post.URL)
		}
	}
	return nil
}

func (r *Runner) printProgress(u posts.ProgressUpdate) {
	switch u.Phase {
	case posts.Upload:
		if u.Task != nil && u.Task.Status == posts.TaskFailed {
			r.writePlain("   ✗ [%d/%d] %s\n", u.Step, u.Total, u.Message)
			return
		}
		r.writePlain("   [%d/%d] %s\n", u.Step, u.Total, u.Message)
	case posts.Create:
		r.writePlain("📝 %s\n", u.Message)
	case posts.Done:
		r.logger.Debug("submission finished", "message", u.Message)
	default:
		r.writePlain("%s\n", u.Message)
	}
}

// parseWhen accepts an RFC3339 timestamp or a delay such as 90m, relative to now. The result must be in the future.
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	when, err := time.Parse(time.RFC3339, s)
	if err != nil {
		d, derr := time.ParseDuration(strings.TrimPrefix(s, "+"))
		if derr != nil {
			return time.Time{}, fmt.Errorf("%w: --at %q is neither RFC3339 nor a duration", shared.ErrInvalidFlag, s)
		}
		when = now.Add(d)
	}
	if !when.After(now) {
		return time.Time{}, fmt.Errorf("%w: --at %q is not in the future", shared.ErrInvalidFlag, s)
	}
	return when, nil
}
