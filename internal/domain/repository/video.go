package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
)

// VideoRepository defines the interface for video persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type VideoRepository interface {
	// Create persists a new video entity.
	// Returns error if the video already exists or persistence fails.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a video by its unique identifier.
	// Returns nil and ErrVideoNotFound if the video does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// GetByOwnerID retrieves all videos belonging to an owner.
	// Returns empty slice if no videos exist for the owner.
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Video, error)

	// Update persists the full set of mutable columns for an existing video:
	// status, error, metadata, manifest URL, available qualities, and
	// workflow handle. Returns ErrVideoNotFound if the video does not exist.
	Update(ctx context.Context, video *model.Video) error

	// UpdateStatus updates only the status column of a video. This is the
	// single-commit write used for plain stage transitions that don't also
	// change metadata, per spec.md §5's transaction discipline.
	// Returns ErrVideoNotFound if the video does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error
}
