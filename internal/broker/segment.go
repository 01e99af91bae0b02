package broker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/infrastructure/metrics"
	"github.com/gostream/pipeline/internal/pipeline/stage"
)

// segment implements spec.md §4.5: segment every surviving rendition into
// HLS chunks + a per-quality playlist. Retry is applied per quality, each
// quality getting the Segment policy's full attempt budget; a quality that
// still fails after its attempts are exhausted is skipped rather than
// failing the whole run. The stage as a whole is not re-run.
func (e *Engine) segment(ctx context.Context, log *slog.Logger, agg *stage.AggregateOutput) (*stage.SegmentOutput, error) {
	log = log.With("stage", "segment")

	if err := e.setStatus(ctx, agg.VideoID, model.StatusSegmenting); err != nil {
		return nil, fmt.Errorf("segment stage: %w", err)
	}

	policy := e.deps.Stages.Segment
	files := make(map[string]stage.SegmentedFile, len(agg.TranscodedFiles))

	for quality, file := range agg.TranscodedFiles {
		quality, file := quality, file

		qualityDir := filepath.Join(agg.SegmentsDir, quality)
		var result *stage.SegmentedFile

		err := retryStage(ctx, policy.MaxAttempts, policy.Backoff, func(attempt int) error {
			start := time.Now()
			seg, err := e.deps.Encoder.Segment(ctx, file.Path, qualityDir)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrToolFailure, err)
			}
			log.Info("rendition segmented", "quality", quality, "attempt", attempt, "duration", time.Since(start), "segments", seg.SegmentCount)
			result = &stage.SegmentedFile{
				PlaylistPath: seg.PlaylistPath,
				SegmentsDir:  seg.SegmentsDir,
				SegmentCount: seg.SegmentCount,
			}
			return nil
		})

		metrics.StageAttemptsTotal.WithLabelValues("segment", attemptOutcome(err)).Inc()
		if err != nil {
			log.Warn("quality dropped: segmentation exhausted retries", "quality", quality, "error", err)
			continue
		}
		files[quality] = *result
	}

	if len(files) == 0 {
		e.markFailed(ctx, agg.VideoID, "all qualities failed segmentation")
		e.cleanupWorkspace(log, agg.WorkspaceRoot)
		return nil, fmt.Errorf("segment stage: %w: all qualities failed segmentation", ErrValidation)
	}

	return &stage.SegmentOutput{
		VideoID:        agg.VideoID,
		WorkspaceRoot:  agg.WorkspaceRoot,
		SegmentedFiles: files,
		SegmentsDir:    agg.SegmentsDir,
	}, nil
}
