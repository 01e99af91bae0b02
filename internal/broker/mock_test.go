package broker

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
)

// mockVideoRepository is a function-field stub for repository.VideoRepository.
type mockVideoRepository struct {
	createFn       func(ctx context.Context, video *model.Video) error
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	getByOwnerIDFn func(ctx context.Context, ownerID uuid.UUID) ([]*model.Video, error)
	updateFn       func(ctx context.Context, video *model.Video) error
	updateStatusFn func(ctx context.Context, id uuid.UUID, status model.Status) error
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*model.Video, error) {
	if m.getByOwnerIDFn != nil {
		return m.getByOwnerIDFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockVideoRepository) Update(ctx context.Context, video *model.Video) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

// mockObjectStorage is a function-field stub for repository.ObjectStorage.
type mockObjectStorage struct {
	ensureBucketFn  func(ctx context.Context, bucket string) error
	streamPutFn     func(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	streamGetFn     func(ctx context.Context, bucket, key string, w io.Writer) error
	putFileFn       func(ctx context.Context, bucket, key, localPath string) error
	deleteFn        func(ctx context.Context, bucket, key string) error
	existsFn        func(ctx context.Context, bucket, key string) (bool, error)
	presignedGetFn  func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	presignedPutFn  func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

func (m *mockObjectStorage) EnsureBucket(ctx context.Context, bucket string) error {
	if m.ensureBucketFn != nil {
		return m.ensureBucketFn(ctx, bucket)
	}
	return nil
}

func (m *mockObjectStorage) StreamPut(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if m.streamPutFn != nil {
		return m.streamPutFn(ctx, bucket, key, r, size, contentType)
	}
	return nil
}

func (m *mockObjectStorage) StreamGet(ctx context.Context, bucket, key string, w io.Writer) error {
	if m.streamGetFn != nil {
		return m.streamGetFn(ctx, bucket, key, w)
	}
	return nil
}

func (m *mockObjectStorage) PutFile(ctx context.Context, bucket, key, localPath string) error {
	if m.putFileFn != nil {
		return m.putFileFn(ctx, bucket, key, localPath)
	}
	return nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, bucket, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, bucket, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, bucket, key)
	}
	return false, nil
}

func (m *mockObjectStorage) PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if m.presignedGetFn != nil {
		return m.presignedGetFn(ctx, bucket, key, ttl)
	}
	return "http://example.com/" + key, nil
}

func (m *mockObjectStorage) PresignedPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if m.presignedPutFn != nil {
		return m.presignedPutFn(ctx, bucket, key, ttl)
	}
	return "http://example.com/" + key, nil
}

// mockJoinStore is a function-field stub for repository.JoinStore, backed
// by an in-memory map so tests don't need a real Redis instance.
type mockJoinStore struct {
	results  map[string][][]byte
	expected map[string]int
}

func newMockJoinStore() *mockJoinStore {
	return &mockJoinStore{results: map[string][][]byte{}, expected: map[string]int{}}
}

func (m *mockJoinStore) groupKey(videoID uuid.UUID, groupID string) string {
	return videoID.String() + ":" + groupID
}

func (m *mockJoinStore) BeginGroup(ctx context.Context, videoID uuid.UUID, groupID string, expected int) error {
	m.expected[m.groupKey(videoID, groupID)] = expected
	return nil
}

func (m *mockJoinStore) RecordResult(ctx context.Context, videoID uuid.UUID, groupID, memberID string, payload []byte) (int, error) {
	key := m.groupKey(videoID, groupID)
	m.results[key] = append(m.results[key], payload)
	return len(m.results[key]), nil
}

func (m *mockJoinStore) CollectResults(ctx context.Context, videoID uuid.UUID, groupID string) ([][]byte, int, error) {
	key := m.groupKey(videoID, groupID)
	return m.results[key], m.expected[key], nil
}

func (m *mockJoinStore) Clear(ctx context.Context, videoID uuid.UUID, groupID string) error {
	key := m.groupKey(videoID, groupID)
	delete(m.results, key)
	delete(m.expected, key)
	return nil
}

// mockVideoCache is a function-field stub for cache.VideoCache.
type mockVideoCache struct {
	getFn    func(ctx context.Context, videoID uuid.UUID) (*model.Video, error)
	setFn    func(ctx context.Context, video *model.Video, ttl time.Duration) error
	deleteFn func(ctx context.Context, videoID uuid.UUID) error
}

func (m *mockVideoCache) Get(ctx context.Context, videoID uuid.UUID) (*model.Video, error) {
	if m.getFn != nil {
		return m.getFn(ctx, videoID)
	}
	return nil, nil
}

func (m *mockVideoCache) Set(ctx context.Context, video *model.Video, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, video, ttl)
	}
	return nil
}

func (m *mockVideoCache) Delete(ctx context.Context, videoID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, videoID)
	}
	return nil
}

var (
	_ repository.VideoRepository = (*mockVideoRepository)(nil)
	_ repository.ObjectStorage   = (*mockObjectStorage)(nil)
	_ repository.JoinStore       = (*mockJoinStore)(nil)
)
