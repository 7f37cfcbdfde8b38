package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
)

// MediaRepository stores the mirrored media list. It satisfies media.Mirror.
type MediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a repository over the media table.
func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `media_id, media_type, platform, public_url, filename, file_size, status, uploaded_at, expires_at`

const upsertMedia = `
	INSERT INTO media (id, ` + mediaColumns + `, position, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(media_id) DO UPDATE SET
		media_type = excluded.media_type,
		platform = excluded.platform,
		public_url = excluded.public_url,
		filename = excluded.filename,
		file_size = excluded.file_size,
		status = excluded.status,
		uploaded_at = excluded.uploaded_at,
		expires_at = excluded.expires_at,
		position = excluded.position,
		synced_at = excluded.synced_at
`

// ReplaceAll drops the mirror and stores items as the first page.
func (r *MediaRepository) ReplaceAll(ctx context.Context, items []backend.MediaItem) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM media`); err != nil {
			return fmt.Errorf("failed to clear media: %w", err)
		}
		return upsert(ctx, tx, items, 0)
	})
}

// Append stores items at positions starting from offset, replacing rows with the same media id.
func (r *MediaRepository) Append(ctx context.Context, items []backend.MediaItem, offset int) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return upsert(ctx, tx, items, offset)
	})
}

// Remove deletes rows by media id. Unknown ids are ignored.
func (r *MediaRepository) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `DELETE FROM media WHERE media_id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

// Get returns one mirrored item, or [shared.ErrMediaNotFound].
func (r *MediaRepository) Get(ctx context.Context, mediaID string) (*backend.MediaItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE media_id = ?`, mediaID)
	item, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMediaNotFound, mediaID)
	}
	return item, err
}

// List returns mirrored items in list order. An empty mediaType matches all; limit <= 0 means no limit.
func (r *MediaRepository) List(ctx context.Context, mediaType backend.MediaType, limit, offset int) ([]backend.MediaItem, error) {
	query := `SELECT ` + mediaColumns + ` FROM media`
	var args []any
	if mediaType != "" {
		query += ` WHERE media_type = ?`
		args = append(args, string(mediaType))
	}
	query += ` ORDER BY position, media_id LIMIT ? OFFSET ?`
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	var items []backend.MediaItem
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Count returns the number of mirrored items of mediaType, or of all when empty.
func (r *MediaRepository) Count(ctx context.Context, mediaType backend.MediaType) (int, error) {
	query := `SELECT COUNT(*) FROM media`
	var args []any
	if mediaType != "" {
		query += ` WHERE media_type = ?`
		args = append(args, string(mediaType))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return n, nil
}

// LastSynced reports when the mirror was last written, zero when empty.
func (r *MediaRepository) LastSynced(ctx context.Context) (time.Time, error) {
	var ts sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(synced_at) FROM media`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to read sync time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", time.DateTime} {
		if t, err := time.Parse(layout, ts.String); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised sync time %q", ts.String)
}

func upsert(ctx context.Context, tx *sql.Tx, items []backend.MediaItem, offset int) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertMedia)
	if err != nil {
		return fmt.Errorf("failed to prepare media insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: media item without id at position %d", shared.ErrInvalidInput, offset+i)
		}
		_, err := stmt.ExecContext(ctx,
			shared.GenerateID(),
			it.ID,
			string(it.Type),
			it.Platform,
			it.URL,
			it.Filename,
			it.Size,
			it.Status,
			it.UploadedAt,
			it.ExpiresAt,
			offset+i,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to store media %s: %w", it.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (*backend.MediaItem, error) {
	var (
		item                                                   backend.MediaItem
		mediaType                                              string
		platform, url, filename, status, uploadedAt, expiresAt sql.NullString
	)
	err := s.Scan(&item.ID, &mediaType, &platform, &url, &filename, &item.Size, &status, &uploadedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan media: %w", err)
	}
	item.Type = backend.MediaType(mediaType)
	item.Platform = platform.String
	item.URL = url.String
	item.Filename = filename.String
	item.Status = status.String
	item.UploadedAt = uploadedAt.String
	item.ExpiresAt = expiresAt.String
	return &item, nil
}
