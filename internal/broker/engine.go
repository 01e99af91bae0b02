package broker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/gostream/pipeline/internal/infrastructure/cache"
	"github.com/gostream/pipeline/internal/infrastructure/metrics"
	"github.com/gostream/pipeline/internal/pipeline/manifest"
	"github.com/gostream/pipeline/internal/pipeline/probe"
	"github.com/gostream/pipeline/internal/pipeline/stage"
	"github.com/gostream/pipeline/internal/pipeline/transcode"
	"github.com/gostream/pipeline/internal/pipeline/workspace"
)

// transcodeGroupID is the JoinStore group key for the Transcode fan-out,
// scoped per video (one fan-out group per workflow run).
const transcodeGroupID = "transcode"

// StagePolicy is the (max attempts, backoff) pair for one named stage.
type StagePolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Buckets names the object-store buckets the engine reads from and writes
// to, per spec.md §6's persisted layout.
type Buckets struct {
	Raw       string
	Processed string
}

// Stages collects the per-stage retry policy, keyed by stage name.
type Stages struct {
	Prepare   StagePolicy
	Transcode StagePolicy
	Segment   StagePolicy
	Manifest  StagePolicy
	Upload    StagePolicy
	Finalize  StagePolicy
}

// Dependencies are the collaborators the Engine needs, constructed once at
// worker startup and injected — spec.md §9's "singletons -> injected
// collaborators" design note.
type Dependencies struct {
	Videos  repository.VideoRepository
	Storage repository.ObjectStorage
	Joins   repository.JoinStore
	Cache   cache.VideoCache
	Prober  *probe.Prober
	Encoder *transcode.Encoder

	Buckets           Buckets
	Stages            Stages
	TempDir           string
	FanOutConcurrency int
	Ladder            map[string]model.LadderEntry

	Logger *slog.Logger
}

// Engine executes one workflow run end to end for a single video_id.
type Engine struct {
	deps Dependencies
}

// New constructs an Engine. A nil Logger falls back to slog.Default(), and
// a nil/empty Ladder falls back to model.DefaultLadder().
func New(deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(deps.Ladder) == 0 {
		deps.Ladder = model.DefaultLadder()
	}
	if deps.FanOutConcurrency < 1 {
		deps.FanOutConcurrency = 1
	}
	return &Engine{deps: deps}
}

// Run drives the full chain for videoID: Prepare -> Transcode(xN) ->
// Aggregate -> Segment -> Manifest -> Upload -> Finalize. Each stage
// persists its own status transition. On a probe failure, no surviving
// rendition, no segmented quality, a manifest build that exhausted its
// retries, or an upload that exhausted its retries, the video row is
// marked failed and its workspace cleaned up before the error is
// returned. Other errors (a rejected or unpersisted status transition, a
// source download that exhausted its retries, a missing ladder entry, a
// Finalize failure) are returned without marking the row failed or
// removing the workspace. A workspace cleanup failure is logged as
// ErrWorkspaceCleanup but never surfaces as Run's returned error.
func (e *Engine) Run(ctx context.Context, videoID uuid.UUID) error {
	log := e.deps.Logger.With("video_id", videoID.String())
	start := time.Now()

	prep, err := e.prepare(ctx, log, videoID)
	if err != nil {
		return err
	}

	agg, err := e.transcodeAndAggregate(ctx, log, prep)
	if err != nil {
		return err
	}

	seg, err := e.segment(ctx, log, agg)
	if err != nil {
		return err
	}

	man, err := e.buildManifest(ctx, log, seg)
	if err != nil {
		return err
	}

	up, err := e.upload(ctx, log, man)
	if err != nil {
		return err
	}

	if err := e.finalize(ctx, log, up); err != nil {
		return err
	}

	log.Info("workflow completed", "duration", time.Since(start))
	return nil
}

// cleanupWorkspace best-effort deletes a job's local temp directory. Called
// from finalize on success and beside every markFailed call on failure;
// the error exits of Run that do not mark the video failed do not call it.
// A cleanup failure is logged, never fatal.
func (e *Engine) cleanupWorkspace(log *slog.Logger, root string) {
	if root == "" {
		return
	}
	ws := &workspace.Workspace{Root: root}
	if err := ws.Cleanup(); err != nil {
		log.Warn("workspace cleanup failed", "error", fmt.Errorf("%w: %v", ErrWorkspaceCleanup, err))
	}
}

func (e *Engine) invalidateCache(ctx context.Context, videoID uuid.UUID) {
	if e.deps.Cache == nil {
		return
	}
	if err := e.deps.Cache.Delete(ctx, videoID); err != nil {
		e.deps.Logger.Warn("cache invalidation failed", "video_id", videoID.String(), "error", err)
	}
}

// markFailed commits a terminal failure, mirroring the behavior every
// stage needs on a fatal error path: write failed + processing_error, then
// invalidate the status cache so the next poll sees it.
func (e *Engine) markFailed(ctx context.Context, videoID uuid.UUID, reason string) {
	video, err := e.deps.Videos.GetByID(ctx, videoID)
	if err != nil {
		e.deps.Logger.Error("could not load video to mark failed", "video_id", videoID.String(), "error", err)
		return
	}
	if video.ProcessingStatus.IsTerminal() {
		return
	}
	if err := video.Fail(reason); err != nil {
		e.deps.Logger.Error("could not transition video to failed", "video_id", videoID.String(), "error", err)
		return
	}
	if err := e.deps.Videos.Update(ctx, video); err != nil {
		e.deps.Logger.Error("could not persist failed status", "video_id", videoID.String(), "error", err)
		return
	}
	e.invalidateCache(ctx, videoID)
}

// prepare implements spec.md §4.2: load + validate the video row,
// transition to preparing, allocate the workspace, download the source,
// probe it, and persist the resulting metadata.
func (e *Engine) prepare(ctx context.Context, log *slog.Logger, videoID uuid.UUID) (*stage.PrepareOutput, error) {
	policy := e.deps.Stages.Prepare
	var out *stage.PrepareOutput

	err := retryStage(ctx, policy.MaxAttempts, policy.Backoff, func(attempt int) error {
		log := log.With("stage", "prepare", "attempt", attempt)
		attemptStart := time.Now()

		video, err := e.deps.Videos.GetByID(ctx, videoID)
		if err != nil {
			return fatal(fmt.Errorf("%w: load video %s: %v", ErrValidation, videoID, err))
		}

		switch video.ProcessingStatus {
		case model.StatusQueued:
			if err := video.TransitionTo(model.StatusPreparing); err != nil {
				return fatal(fmt.Errorf("%w: %v", ErrValidation, err))
			}
			if err := e.deps.Videos.UpdateStatus(ctx, videoID, model.StatusPreparing); err != nil {
				return fmt.Errorf("%w: persist preparing status: %v", ErrTransient, err)
			}
			e.invalidateCache(ctx, videoID)
		case model.StatusPreparing:
			// Idempotent re-entry on retry; already transitioned.
		default:
			return fatal(fmt.Errorf("%w: video %s not queued (status=%s)", ErrValidation, videoID, video.ProcessingStatus))
		}

		ws, err := workspace.New(e.deps.TempDir, videoID)
		if err != nil {
			return fmt.Errorf("%w: allocate workspace: %v", ErrTransient, err)
		}

		rawPath := ws.RawPath(filepath.Ext(video.RawSourceKey))
		if err := e.downloadSource(ctx, video.RawSourceKey, rawPath); err != nil {
			return fmt.Errorf("%w: download raw source: %v", ErrTransient, err)
		}

		meta, err := e.deps.Prober.Probe(ctx, rawPath)
		if err != nil {
			e.markFailed(ctx, videoID, fmt.Sprintf("probe failed: %v", err))
			e.cleanupWorkspace(log, ws.Root)
			return fatal(fmt.Errorf("%w: %v", ErrCorruptSource, err))
		}

		video.ProcessingMetadata = meta
		if err := e.deps.Videos.Update(ctx, video); err != nil {
			return fmt.Errorf("%w: persist probed metadata: %v", ErrTransient, err)
		}
		e.invalidateCache(ctx, videoID)

		out = &stage.PrepareOutput{
			VideoID:        videoID,
			RawLocalPath:   rawPath,
			WorkspaceRoot:  ws.Root,
			TranscodedDir:  ws.TranscodedDir,
			SegmentsDir:    ws.SegmentsDir,
			ProbedMetadata: meta,
		}
		log.Info("prepare complete", "duration", time.Since(attemptStart))
		return nil
	})

	metrics.StageAttemptsTotal.WithLabelValues("prepare", attemptOutcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("prepare stage: %w", err)
	}
	return out, nil
}

func (e *Engine) downloadSource(ctx context.Context, key, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create raw file: %w", err)
	}
	defer f.Close()

	if err := e.deps.Storage.StreamGet(ctx, e.deps.Buckets.Raw, key, f); err != nil {
		return fmt.Errorf("stream source: %w", err)
	}
	return nil
}

func attemptOutcome(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
