package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/postsiva/internal/schedule"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive media browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/postsiva-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	lib, done, err := r.library(ctx, 0)
	if err != nil {
		return err
	}
	defer done()

	client, err := r.backendClient()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, lib, schedule.New(client, fileLogger))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
