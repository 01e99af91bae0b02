package repository

import (
	"context"

	"github.com/google/uuid"
)

// ProcessVideoJob is the message dispatched to the worker fleet once a
// video has finished uploading, triggering the Prepare -> ... -> Finalize
// chain described in spec.md §4. Unlike the teacher's per-quality
// TranscodeTask, one job drives the whole workflow for a single video;
// per-quality fan-out happens inside the worker's broker engine.
type ProcessVideoJob struct {
	VideoID    uuid.UUID `json:"video_id"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for task broker operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishProcessVideoJob enqueues the pipeline trigger for a video.
	// Within this module it is called only by the RabbitMQ consumer to
	// republish a job whose handler failed; cmd/api does not publish.
	PublishProcessVideoJob(ctx context.Context, job ProcessVideoJob) error

	// ConsumeProcessVideoJobs starts consuming pipeline-trigger jobs from
	// the queue. The handler is called for each delivery; returning a
	// non-nil error republishes the job with RetryCount incremented and
	// acks the original delivery. Blocks until ctx
	// is canceled. Used by the worker service.
	ConsumeProcessVideoJobs(ctx context.Context, handler func(ctx context.Context, job ProcessVideoJob) error) error

	// Close gracefully closes the connection to the broker.
	Close() error
}
