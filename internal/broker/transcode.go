package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/infrastructure/metrics"
	"github.com/gostream/pipeline/internal/pipeline/stage"
)

// transcodeAndAggregate fans out one Transcode child per ladder entry,
// bounded to FanOutConcurrency workers, joins on the JoinStore, and runs
// Aggregate's filter over the collected results — spec.md §4.1's
// "[Transcode(q1) || ... || Transcode(qn)] -> Aggregate" chord.
func (e *Engine) transcodeAndAggregate(ctx context.Context, log *slog.Logger, prep *stage.PrepareOutput) (*stage.AggregateOutput, error) {
	if err := e.setStatus(ctx, prep.VideoID, model.StatusTranscoding); err != nil {
		return nil, fmt.Errorf("transcode stage: %w", err)
	}

	if err := e.deps.Joins.BeginGroup(ctx, prep.VideoID, transcodeGroupID, len(e.deps.Ladder)); err != nil {
		return nil, fmt.Errorf("transcode stage: %w", fmt.Errorf("%w: begin fan-out group: %v", ErrTransient, err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.deps.FanOutConcurrency)

	for label, entry := range e.deps.Ladder {
		label, entry := label, entry
		g.Go(func() error {
			metrics.TranscodeFanOutInFlight.Inc()
			defer metrics.TranscodeFanOutInFlight.Dec()

			result := e.transcodeOne(gctx, log, prep, entry)
			payload, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("marshal transcode result for %s: %w", label, err)
			}
			if _, err := e.deps.Joins.RecordResult(ctx, prep.VideoID, transcodeGroupID, label, payload); err != nil {
				return fmt.Errorf("record transcode result for %s: %w", label, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("transcode stage: %w", fmt.Errorf("%w: %v", ErrTransient, err))
	}

	return e.aggregate(ctx, log, prep)
}

// transcodeOne implements spec.md §4.3 for a single ladder entry: the
// no-upscale skip policy, then the encode invocation with its own retry
// budget. It never returns an error — a skipped rendition is recorded as a
// Skipped TranscodeResult and a rendition that exhausted its retries as a
// nil result, consistent with "individual renditions
// MAY fail terminally or SKIP" being handled inside the fan-out, not by
// failing the whole group.
func (e *Engine) transcodeOne(ctx context.Context, log *slog.Logger, prep *stage.PrepareOutput, entry model.LadderEntry) *stage.TranscodeResult {
	log = log.With("stage", "transcode", "quality", entry.Label)

	if prep.ProbedMetadata != nil && entry.Height > prep.ProbedMetadata.Height {
		log.Info("skipping rendition: source resolution below target")
		return &stage.TranscodeResult{
			VideoID:    prep.VideoID,
			Quality:    entry.Label,
			Skipped:    true,
			SkipReason: fmt.Sprintf("source height %d below target height %d", prep.ProbedMetadata.Height, entry.Height),
		}
	}

	policy := e.deps.Stages.Transcode
	var result *stage.TranscodeResult

	err := retryStage(ctx, policy.MaxAttempts, policy.Backoff, func(attempt int) error {
		start := time.Now()
		rendition, err := e.deps.Encoder.EncodeRendition(ctx, prep.RawLocalPath, prep.TranscodedDir, entry)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrToolFailure, err)
		}
		log.Info("rendition encoded", "attempt", attempt, "duration", time.Since(start))
		result = &stage.TranscodeResult{
			VideoID:    prep.VideoID,
			Quality:    entry.Label,
			OutputPath: rendition.OutputPath,
			FileSize:   rendition.FileSize,
		}
		return nil
	})

	metrics.StageAttemptsTotal.WithLabelValues("transcode", attemptOutcome(err)).Inc()
	if err != nil {
		log.Warn("rendition exhausted retries", "error", err)
		return nil
	}
	return result
}

// aggregate implements spec.md §4.4: collect every fan-out result, drop
// skipped/nil entries, fail the workflow if nothing survived.
func (e *Engine) aggregate(ctx context.Context, log *slog.Logger, prep *stage.PrepareOutput) (*stage.AggregateOutput, error) {
	if err := e.setStatus(ctx, prep.VideoID, model.StatusAggregating); err != nil {
		return nil, fmt.Errorf("aggregate stage: %w", err)
	}

	payloads, expected, err := e.deps.Joins.CollectResults(ctx, prep.VideoID, transcodeGroupID)
	if err != nil {
		return nil, fmt.Errorf("aggregate stage: %w", fmt.Errorf("%w: collect fan-out results: %v", ErrTransient, err))
	}
	if len(payloads) < expected {
		log.Warn("fan-out join incomplete", "collected", len(payloads), "expected", expected)
	}

	files := make(map[string]stage.TranscodedFile, len(payloads))
	for _, raw := range payloads {
		var result *stage.TranscodeResult
		if err := json.Unmarshal(raw, &result); err != nil {
			log.Warn("dropping malformed fan-out result", "error", err)
			continue
		}
		if result.Dropped() {
			continue
		}
		files[result.Quality] = stage.TranscodedFile{Path: result.OutputPath, Size: result.FileSize}
	}

	if err := e.deps.Joins.Clear(ctx, prep.VideoID, transcodeGroupID); err != nil {
		log.Warn("failed to clear fan-out group state", "error", err)
	}

	if len(files) == 0 {
		e.markFailed(ctx, prep.VideoID, "all transcodes failed")
		e.cleanupWorkspace(log, prep.WorkspaceRoot)
		return nil, fmt.Errorf("aggregate stage: %w: all transcodes failed", ErrValidation)
	}

	return &stage.AggregateOutput{
		VideoID:         prep.VideoID,
		WorkspaceRoot:   prep.WorkspaceRoot,
		TranscodedFiles: files,
		SegmentsDir:     prep.SegmentsDir,
	}, nil
}

// setStatus transitions the in-memory status machine rules and persists
// the single-column write, invalidating the status cache on success.
func (e *Engine) setStatus(ctx context.Context, videoID uuid.UUID, status model.Status) error {
	video, err := e.deps.Videos.GetByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("%w: load video: %v", ErrValidation, err)
	}
	if video.ProcessingStatus == status {
		return nil // idempotent re-entry
	}
	if err := video.TransitionTo(status); err != nil {
		return fatal(fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if err := e.deps.Videos.UpdateStatus(ctx, videoID, status); err != nil {
		return fmt.Errorf("%w: persist %s status: %v", ErrTransient, status, err)
	}
	e.invalidateCache(ctx, videoID)
	return nil
}
