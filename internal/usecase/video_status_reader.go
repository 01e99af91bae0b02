// Package usecase holds the thin application-layer logic that sits between
// the HTTP handlers and the domain/infrastructure layers.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/gostream/pipeline/internal/infrastructure/cache"
	"github.com/gostream/pipeline/internal/infrastructure/metrics"
)

// VideoStatusReader serves the one hot read path the polling endpoint
// drives: repeated GetByID calls for the same video while it works its way
// through the pipeline. It is the consumer side of the cache the worker
// invalidates on every status transition (see broker.Engine.setStatus).
type VideoStatusReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)
}

// cachedVideoStatusReader implements a cache-aside read with singleflight
// coalescing: a burst of polls for the same video that all miss the cache
// collapse into a single Postgres round trip instead of one each.
type cachedVideoStatusReader struct {
	repo  repository.VideoRepository
	cache cache.VideoCache
	ttl   time.Duration
	sf    singleflight.Group
}

// NewVideoStatusReader wraps a VideoRepository with Redis-backed caching and
// singleflight request coalescing.
func NewVideoStatusReader(repo repository.VideoRepository, videoCache cache.VideoCache, ttl time.Duration) VideoStatusReader {
	return &cachedVideoStatusReader{repo: repo, cache: videoCache, ttl: ttl}
}

func (r *cachedVideoStatusReader) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	v, err, shared := r.sf.Do(id.String(), func() (any, error) {
		return r.getWithCache(ctx, id)
	})
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.Video), nil
}

func (r *cachedVideoStatusReader) getWithCache(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	video, err := r.cache.Get(ctx, id)
	if err != nil {
		slog.Warn("status cache get failed, falling back to database", "video_id", id, "error", err)
	}
	if video != nil {
		return video, nil
	}

	video, err = r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, video, r.ttl); err != nil {
		slog.Warn("failed to cache video status", "video_id", id, "error", err)
	}
	return video, nil
}
