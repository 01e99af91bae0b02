package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// VideoRepository implements repository.VideoRepository using PostgreSQL.
type VideoRepository struct {
	db DBTX
}

// NewVideoRepository creates a new VideoRepository instance.
func NewVideoRepository(db DBTX) *VideoRepository {
	return &VideoRepository{db: db}
}

// Create persists a new video entity.
func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	const query = `
		INSERT INTO videos (id, owner_id, raw_source_key, processing_status, processing_error,
			processing_metadata, manifest_url, available_qualities, workflow_handle, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	metadata, err := marshalMetadata(video.ProcessingMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		video.ID,
		video.OwnerID,
		video.RawSourceKey,
		video.ProcessingStatus.String(),
		nullString(video.ProcessingError),
		metadata,
		nullString(video.ManifestURL),
		video.AvailableQualities,
		nullString(video.WorkflowHandle),
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrDuplicateVideo
		}
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by its unique identifier.
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	const query = `
		SELECT id, owner_id, raw_source_key, processing_status, processing_error,
			processing_metadata, manifest_url, available_qualities, workflow_handle, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", err)
	}

	return video, nil
}

// GetByOwnerID retrieves all videos belonging to an owner.
func (r *VideoRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Video, error) {
	const query = `
		SELECT id, owner_id, raw_source_key, processing_status, processing_error,
			processing_metadata, manifest_url, available_qualities, workflow_handle, created_at, updated_at
		FROM videos
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos by owner ID: %w", err)
	}
	defer rows.Close()

	var videos []*model.Video
	for rows.Next() {
		video, err := scanVideoFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}

	return videos, nil
}

// Update persists the full set of mutable columns for an existing video.
func (r *VideoRepository) Update(ctx context.Context, video *model.Video) error {
	const query = `
		UPDATE videos
		SET processing_status = $2, processing_error = $3, processing_metadata = $4,
			manifest_url = $5, available_qualities = $6, workflow_handle = $7, updated_at = $8
		WHERE id = $1
	`

	metadata, err := marshalMetadata(video.ProcessingMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	video.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx, query,
		video.ID,
		video.ProcessingStatus.String(),
		nullString(video.ProcessingError),
		metadata,
		nullString(video.ManifestURL),
		video.AvailableQualities,
		nullString(video.WorkflowHandle),
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// UpdateStatus updates only the status column of a video.
func (r *VideoRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	const query = `
		UPDATE videos
		SET processing_status = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update video status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrVideoNotFound
	}

	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows, which both expose Scan but
// share no common interface in pgx/v5.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row pgx.Row) (*model.Video, error) {
	return scan(row)
}

func scanVideoFromRows(rows pgx.Rows) (*model.Video, error) {
	return scan(rows)
}

func scan(row rowScanner) (*model.Video, error) {
	var (
		video        model.Video
		status       string
		processingErr *string
		metadata     []byte
		manifestURL  *string
		handle       *string
	)

	err := row.Scan(
		&video.ID,
		&video.OwnerID,
		&video.RawSourceKey,
		&status,
		&processingErr,
		&metadata,
		&manifestURL,
		&video.AvailableQualities,
		&handle,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	video.ProcessingStatus = model.Status(status)
	if processingErr != nil {
		video.ProcessingError = *processingErr
	}
	if manifestURL != nil {
		video.ManifestURL = *manifestURL
	}
	if handle != nil {
		video.WorkflowHandle = *handle
	}
	if len(metadata) > 0 {
		var m model.Metadata
		if err := json.Unmarshal(metadata, &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal processing metadata: %w", err)
		}
		video.ProcessingMetadata = &m
	}

	return &video, nil
}

func marshalMetadata(m *model.Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that VideoRepository implements repository.VideoRepository.
var _ repository.VideoRepository = (*VideoRepository)(nil)
