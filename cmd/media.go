package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/formatter"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/media"
	"github.com/desertthunder/postsiva/internal/repositories"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/urfave/cli/v3"
)

// library enters the storage view and builds a media library mirrored into the local database. A database that
// cannot be opened only costs the mirror.
func (r *Runner) library(ctx context.Context, pageSize int) (*media.Library, func(), error) {
	orch, err := r.enter(ctx, guard.Storage)
	if err != nil {
		return nil, nil, err
	}
	client, err := r.backendClient()
	if err != nil {
		orch.Close()
		return nil, nil, err
	}

	if pageSize <= 0 {
		pageSize = r.config.Media.PageSize
	}
	opts := media.Options{
		PageSize:    pageSize,
		Concurrency: r.config.Upload.Concurrency,
		RateLimit:   r.config.Upload.RateLimit,
		Logger:      r.logger,
	}
	if db, err := r.database(); err != nil {
		r.logger.Warn("media mirror disabled", "err", err)
	} else {
		opts.Mirror = repositories.NewMediaRepository(db)
	}
	return media.New(client, opts), orch.Close, nil
}

// loadLibrary loads the first page with filter, then every further page when all is set.
func loadLibrary(ctx context.Context, lib *media.Library, filter media.Filter, all bool) error {
	if err := lib.SetFilter(ctx, filter); err != nil {
		return err
	}
	for all {
		more, err := lib.LoadMore(ctx)
		if err != nil {
			return err
		}
		all = more
	}
	return nil
}

// offlineMedia reads the local mirror.
func (r *Runner) offlineMedia(ctx context.Context, filter media.Filter) ([]backend.MediaItem, time.Time, error) {
	db, err := r.database()
	if err != nil {
		return nil, time.Time{}, err
	}
	repo := repositories.NewMediaRepository(db)

	var mediaType backend.MediaType
	if filter != media.All {
		mediaType = backend.MediaType(filter)
	}
	items, err := repo.List(ctx, mediaType, 0, 0)
	if err != nil {
		return nil, time.Time{}, err
	}
	synced, err := repo.LastSynced(ctx)
	return items, synced, err
}

// MediaList prints the library, from the backend or the local mirror.
func (r *Runner) MediaList(ctx context.Context, cmd *cli.Command) error {
	filter, err := media.ParseFilter(cmd.String("filter"))
	if err != nil {
		return err
	}

	var items []backend.MediaItem
	var cursor media.Cursor
	if cmd.Bool("offline") {
		var synced time.Time
		if items, synced, err = r.offlineMedia(ctx, filter); err != nil {
			return err
		}
		if !cmd.Bool("json") && !synced.IsZero() {
			r.writePlain("Mirror synced %s\n", synced.Local().Format(time.RFC1123))
		}
		cursor = media.Cursor{Total: len(items), Count: len(items)}
	} else {
		lib, done, err := r.library(ctx, cmd.Int("limit"))
		if err != nil {
			return err
		}
		defer done()

		if err := loadLibrary(ctx, lib, filter, cmd.Bool("all")); err != nil {
			return fmt.Errorf("failed to load media: %s", backend.Message(err))
		}
		st := lib.State()
		items, cursor = st.Items, st.Cursor
	}

	if cmd.Bool("json") {
		data, err := formatter.MediaToJSON(items, true)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if len(items) == 0 {
		return r.writePlain("No media found\n")
	}
	r.writePlain("%s\n", mediaTable(items))
	r.writePlain("Showing %d of %d item(s)\n", len(items), cursor.Total)
	if cursor.HasMore {
		r.writePlain("More available: use --all or a larger --limit\n")
	}
	return nil
}

// MediaUpload stores every file named on the command line. All files are attempted.
func (r *Runner) MediaUpload(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file", shared.ErrMissingArgument)
	}
	for i := range paths {
		paths[i] = shared.ExpandPath(paths[i])
	}

	lib, done, err := r.library(ctx, 0)
	if err != nil {
		return err
	}
	defer done()

	outcomes, err := lib.Upload(ctx, paths)
	for _, o := range outcomes {
		if o.Err != nil {
			r.writePlain("✗ %s: %s\n", o.Path, backend.Message(o.Err))
			continue
		}
		r.writePlain("✓ %s → %s\n", o.Path, o.MediaID)
	}
	if err != nil && errors.Is(err, shared.ErrUploadFailed) {
		return errors.New(lib.State().Error)
	}
	return err
}

// MediaDelete removes one id with a single request, several with the bulk endpoint.
func (r *Runner) MediaDelete(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one media id", shared.ErrMissingArgument)
	}

	lib, done, err := r.library(ctx, 0)
	if err != nil {
		return err
	}
	defer done()

	if len(ids) == 1 {
		if err := lib.Delete(ctx, ids[0]); err != nil {
			return fmt.Errorf("failed to delete %s: %s", ids[0], backend.Message(err))
		}
		return r.writePlain("✓ Deleted %s\n", ids[0])
	}

	n, err := lib.BulkDelete(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to delete media: %s", backend.Message(err))
	}
	return r.writePlain("✓ Deleted %d of %d item(s)\n", n, len(ids))
}

// MediaCleanup purges expired media on the backend.
func (r *Runner) MediaCleanup(ctx context.Context, cmd *cli.Command) error {
	lib, done, err := r.library(ctx, 0)
	if err != nil {
		return err
	}
	defer done()

	n, err := lib.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %s", backend.Message(err))
	}
	return r.writePlain("✓ Removed %d expired item(s)\n", n)
}

// MediaExport writes the whole library (or the mirror) to a file.
func (r *Runner) MediaExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	filter, err := media.ParseFilter(cmd.String("filter"))
	if err != nil {
		return err
	}

	var items []backend.MediaItem
	if cmd.Bool("offline") {
		if items, _, err = r.offlineMedia(ctx, filter); err != nil {
			return err
		}
	} else {
		lib, done, err := r.library(ctx, 0)
		if err != nil {
			return err
		}
		defer done()
		if err := loadLibrary(ctx, lib, filter, true); err != nil {
			return fmt.Errorf("failed to load media: %s", backend.Message(err))
		}
		items = lib.State().Items
	}

	path, err := formatter.WriteMediaExport(items, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("exported media", "path", path, "items", len(items))
	return r.writePlain("✓ Exported %d item(s) to %s\n", len(items), path)
}

func mediaTable(items []backend.MediaItem) string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.ID, string(it.Type), formatter.Truncate(it.Filename, 40), formatter.FormatSize(it.Size), it.Status, it.UploadedAt}
	}
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "FILENAME", "SIZE", "STATUS", "UPLOADED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}
