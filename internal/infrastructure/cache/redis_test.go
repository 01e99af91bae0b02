package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestRedisVideoCache_Get_CacheHit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	video := &model.Video{
		ID:                 uuid.New(),
		OwnerID:            uuid.New(),
		RawSourceKey:       "uploads/abc/source.mp4",
		ProcessingStatus:   model.StatusCompleted,
		ManifestURL:        "processed/abc/master.m3u8",
		AvailableQualities: []string{"1080p", "720p"},
		CreatedAt:          time.Now().Truncate(time.Microsecond),
		UpdatedAt:          time.Now().Truncate(time.Microsecond),
	}

	err := cache.Set(ctx, video, 5*time.Minute)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got == nil {
		t.Fatal("expected video, got nil")
	}

	if got.ID != video.ID {
		t.Errorf("ID = %v, want %v", got.ID, video.ID)
	}
	if got.OwnerID != video.OwnerID {
		t.Errorf("OwnerID = %v, want %v", got.OwnerID, video.OwnerID)
	}
	if got.ProcessingStatus != video.ProcessingStatus {
		t.Errorf("ProcessingStatus = %v, want %v", got.ProcessingStatus, video.ProcessingStatus)
	}
	if got.ManifestURL != video.ManifestURL {
		t.Errorf("ManifestURL = %v, want %v", got.ManifestURL, video.ManifestURL)
	}
	if len(got.AvailableQualities) != len(video.AvailableQualities) {
		t.Errorf("AvailableQualities = %v, want %v", got.AvailableQualities, video.AvailableQualities)
	}
}

func TestRedisVideoCache_Get_CacheMiss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	got, err := cache.Get(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil for cache miss, got %v", got)
	}
}

func TestRedisVideoCache_Delete(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	video := &model.Video{
		ID:               uuid.New(),
		OwnerID:          uuid.New(),
		ProcessingStatus: model.StatusCompleted,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	err := cache.Set(ctx, video, 5*time.Minute)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err = cache.Delete(ctx, video.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := cache.Get(ctx, video.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestRedisVideoCache_Delete_NonExistent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	err := cache.Delete(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Delete failed for non-existent key: %v", err)
	}
}

func TestRedisVideoCache_Set_AllStatuses(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	ctx := context.Background()

	statuses := []model.Status{
		model.StatusUploading,
		model.StatusTranscoding,
		model.StatusCompleted,
		model.StatusFailed,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			video := &model.Video{
				ID:               uuid.New(),
				OwnerID:          uuid.New(),
				ProcessingStatus: status,
				CreatedAt:        time.Now(),
				UpdatedAt:        time.Now(),
			}

			err := cache.Set(ctx, video, 5*time.Minute)
			if err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			got, err := cache.Get(ctx, video.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}

			if got.ProcessingStatus != status {
				t.Errorf("ProcessingStatus = %v, want %v", got.ProcessingStatus, status)
			}
		})
	}
}

func TestRedisVideoCache_buildKey(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisVideoCache(client)
	videoID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	key := cache.buildKey(videoID)
	expected := "video:550e8400-e29b-41d4-a716-446655440000"

	if key != expected {
		t.Errorf("buildKey() = %v, want %v", key, expected)
	}
}
