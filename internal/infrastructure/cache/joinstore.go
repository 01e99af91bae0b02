package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/redis/go-redis/v9"
)

const joinKeyPrefix = "join:"

// RedisJoinStore implements repository.JoinStore on top of Redis hashes:
// one hash per (videoID, groupID) pair, keyed by member ID, plus a
// sibling key holding the expected member count. This mirrors the role
// Celery's chord backend plays in the reference implementation, minus
// the chord-specific countdown semantics: CollectResults is a plain
// read, and the caller decides whether len(results) == expected.
type RedisJoinStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisJoinStore creates a Redis-backed JoinStore. ttl bounds how
// long group state survives: each group key expires ttl after its last
// write.
func NewRedisJoinStore(client *redis.Client, ttl time.Duration) *RedisJoinStore {
	return &RedisJoinStore{client: client, ttl: ttl}
}

func (s *RedisJoinStore) resultsKey(videoID uuid.UUID, groupID string) string {
	return fmt.Sprintf("%s%s:%s:results", joinKeyPrefix, videoID, groupID)
}

func (s *RedisJoinStore) expectedKey(videoID uuid.UUID, groupID string) string {
	return fmt.Sprintf("%s%s:%s:expected", joinKeyPrefix, videoID, groupID)
}

// BeginGroup records the expected member count for a fan-out group.
func (s *RedisJoinStore) BeginGroup(ctx context.Context, videoID uuid.UUID, groupID string, expected int) error {
	key := s.expectedKey(videoID, groupID)
	if err := s.client.Set(ctx, key, expected, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis join begin: %w", err)
	}
	return nil
}

// RecordResult stores one member's result payload in the group's hash
// and returns how many members have reported in so far.
func (s *RedisJoinStore) RecordResult(ctx context.Context, videoID uuid.UUID, groupID, memberID string, payload []byte) (int, error) {
	key := s.resultsKey(videoID, groupID)

	if err := s.client.HSet(ctx, key, memberID, payload).Err(); err != nil {
		return 0, fmt.Errorf("redis join record: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("redis join expire: %w", err)
	}

	count, err := s.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis join count: %w", err)
	}
	return int(count), nil
}

// CollectResults returns every payload recorded for the group, in no
// particular order (the Aggregate stage keys them by quality label),
// along with the expected member count.
func (s *RedisJoinStore) CollectResults(ctx context.Context, videoID uuid.UUID, groupID string) ([][]byte, int, error) {
	resultsKey := s.resultsKey(videoID, groupID)
	expectedKey := s.expectedKey(videoID, groupID)

	values, err := s.client.HGetAll(ctx, resultsKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis join collect: %w", err)
	}

	expected, err := s.client.Get(ctx, expectedKey).Int()
	if err != nil {
		if err == redis.Nil {
			expected = 0
		} else {
			return nil, 0, fmt.Errorf("redis join expected: %w", err)
		}
	}

	payloads := make([][]byte, 0, len(values))
	for _, v := range values {
		payloads = append(payloads, []byte(v))
	}
	return payloads, expected, nil
}

// Clear removes all state for the group.
func (s *RedisJoinStore) Clear(ctx context.Context, videoID uuid.UUID, groupID string) error {
	if err := s.client.Del(ctx, s.resultsKey(videoID, groupID), s.expectedKey(videoID, groupID)).Err(); err != nil {
		return fmt.Errorf("redis join clear: %w", err)
	}
	return nil
}

// Compile-time verification that RedisJoinStore implements repository.JoinStore.
var _ repository.JoinStore = (*RedisJoinStore)(nil)
