package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gostream/pipeline/internal/domain/model"
)

// VideoCache defines the interface for caching video status rows, used by
// the status-polling endpoint to avoid hitting Postgres on every request.
type VideoCache interface {
	// Get retrieves a video from cache by ID.
	// Returns nil, nil if the video is not found in cache (cache miss).
	Get(ctx context.Context, videoID uuid.UUID) (*model.Video, error)

	// Set stores a video in cache with the specified TTL.
	Set(ctx context.Context, video *model.Video, ttl time.Duration) error

	// Delete removes a video from cache by ID, called whenever a stage
	// commits a status transition so the next poll sees fresh data.
	Delete(ctx context.Context, videoID uuid.UUID) error
}
