package repository

import (
	"context"

	"github.com/google/uuid"
)

// JoinStore coordinates the Transcode fan-out / Aggregate chord join
// described in spec.md §4.2-4.3: N per-quality transcodes run
// concurrently, and Aggregate collects the group's results once every
// child has returned. Results are kept as
// opaque JSON blobs so this package does not need to know about the
// pipeline's TranscodeResult type.
//
// Implementations should be backed by Redis, mirroring the role Celery's
// chord backend plays in the original implementation.
type JoinStore interface {
	// BeginGroup records the expected member count for a fan-out group,
	// identified by videoID and a stage-scoped groupID (e.g. "transcode").
	// Safe to call more than once for the same group on worker restart.
	BeginGroup(ctx context.Context, videoID uuid.UUID, groupID string, expected int) error

	// RecordResult stores one member's result payload and returns the
	// number of results recorded so far for the group.
	RecordResult(ctx context.Context, videoID uuid.UUID, groupID string, memberID string, payload []byte) (int, error)

	// CollectResults returns every payload recorded for the group, in no
	// particular order, along with the expected member count.
	CollectResults(ctx context.Context, videoID uuid.UUID, groupID string) (payloads [][]byte, expected int, err error)

	// Clear removes all state for the group, called once Aggregate has
	// consumed the results so retries don't see stale data.
	Clear(ctx context.Context, videoID uuid.UUID, groupID string) error
}
