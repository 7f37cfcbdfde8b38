package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/formatter"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/schedule"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) board(ctx context.Context) (*schedule.Board, func(), error) {
	orch, err := r.enter(ctx, guard.Scheduled)
	if err != nil {
		return nil, nil, err
	}
	client, err := r.backendClient()
	if err != nil {
		orch.Close()
		return nil, nil, err
	}
	return schedule.New(client, r.logger), orch.Close, nil
}

// ScheduleList prints scheduled posts with the given status.
func (r *Runner) ScheduleList(ctx context.Context, cmd *cli.Command) error {
	b, done, err := r.board(ctx)
	if err != nil {
		return err
	}
	defer done()

	q := schedule.Query{Status: cmd.String("status"), Limit: cmd.Int("limit"), Offset: cmd.Int("offset")}
	if err := b.Load(ctx, q); err != nil {
		return fmt.Errorf("failed to load scheduled posts: %s", backend.Message(err))
	}
	st := b.State()

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(st.Posts, true)
	case cmd.Bool("csv"):
		data, err := formatter.ScheduledToCSV(st.Posts)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if len(st.Posts) == 0 {
		return r.writePlain("No %s posts\n", st.Query.Status)
	}
	r.writePlain("%s\n", scheduleTable(st.Posts))
	return r.writePlain("%d %s post(s)\n", st.Total, st.Query.Status)
}

// ScheduleUpdate moves or edits a scheduled post.
func (r *Runner) ScheduleUpdate(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: scheduled post id", shared.ErrMissingArgument)
	}

	u := schedule.Update{Text: cmd.String("text"), Visibility: cmd.String("visibility")}
	if at := cmd.String("at"); at != "" {
		when, err := parseWhen(at, time.Now())
		if err != nil {
			return err
		}
		u.ScheduledTime = when
	}

	b, done, err := r.board(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := b.Update(ctx, id, u); err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}
	return r.writePlain("✓ Updated %s\n", id)
}

// ScheduleCancel cancels a scheduled post.
func (r *Runner) ScheduleCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: scheduled post id", shared.ErrMissingArgument)
	}

	b, done, err := r.board(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := b.Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel %s: %s", id, backend.Message(err))
	}
	return r.writePlain("✓ Cancelled %s\n", id)
}

func scheduleTable(posts []backend.ScheduledPost) string {
	rows := make([][]string, len(posts))
	for i, p := range posts {
		when := p.ScheduledTimeFmt
		if when == "" {
			when = p.ScheduledTime
		}
		rows[i] = []string{p.ID, p.PostType, p.Status, when, strings.ToLower(p.Data.Visibility), formatter.Truncate(p.Data.Text, 48)}
	}
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "STATUS", "WHEN", "VISIBILITY", "TEXT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}
