package broker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/infrastructure/metrics"
	"github.com/gostream/pipeline/internal/pipeline/stage"
	"github.com/gostream/pipeline/internal/pipeline/transcode"
)

// upload implements spec.md §4.7: push the master playlist, every
// per-quality playlist, and every segment file (lexically sorted) to the
// processed bucket under <video_id>/segments/, applying the stage's retry
// policy to the whole upload as a unit — a partial upload on a failed
// attempt is simply retried from the top since StreamPut/PutFile targets
// are idempotent (same key, same bytes).
func (e *Engine) upload(ctx context.Context, log *slog.Logger, man *stage.ManifestOutput) (*stage.UploadOutput, error) {
	log = log.With("stage", "upload")

	if err := e.setStatus(ctx, man.VideoID, model.StatusUploadingToStorage); err != nil {
		return nil, fmt.Errorf("upload stage: %w", err)
	}

	basePath := path.Join(man.VideoID.String(), "segments")
	policy := e.deps.Stages.Upload

	var totalFiles int
	var totalBytes int64

	err := retryStage(ctx, policy.MaxAttempts, policy.Backoff, func(attempt int) error {
		start := time.Now()
		totalFiles, totalBytes = 0, 0

		masterKey := path.Join(basePath, "master.m3u8")
		if err := e.uploadFile(ctx, man.MasterPlaylistPath, masterKey, &totalFiles, &totalBytes); err != nil {
			return fmt.Errorf("%w: upload master playlist: %v", ErrTransient, err)
		}

		for _, quality := range man.AvailableQualities {
			qualityDir := filepath.Join(man.SegmentsDir, quality)
			playlistKey := path.Join(basePath, quality, "playlist.m3u8")
			if err := e.uploadFile(ctx, filepath.Join(qualityDir, "playlist.m3u8"), playlistKey, &totalFiles, &totalBytes); err != nil {
				return fmt.Errorf("%w: upload %s playlist: %v", ErrTransient, quality, err)
			}

			segments, err := transcode.SortedSegmentFiles(qualityDir)
			if err != nil {
				return fmt.Errorf("%w: list %s segments: %v", ErrTransient, quality, err)
			}
			for _, name := range segments {
				key := path.Join(basePath, quality, name)
				if err := e.uploadFile(ctx, filepath.Join(qualityDir, name), key, &totalFiles, &totalBytes); err != nil {
					return fmt.Errorf("%w: upload %s segment %s: %v", ErrTransient, quality, name, err)
				}
			}
		}

		log.Info("upload complete", "attempt", attempt, "files", totalFiles, "bytes", totalBytes, "duration", time.Since(start))
		return nil
	})

	metrics.StageAttemptsTotal.WithLabelValues("upload", attemptOutcome(err)).Inc()
	if err != nil {
		e.markFailed(ctx, man.VideoID, fmt.Sprintf("upload failed: %v", err))
		e.cleanupWorkspace(log, man.WorkspaceRoot)
		return nil, fmt.Errorf("upload stage: %w", err)
	}

	// spec's durable manifest_url contract: "/<bucket>/<video_id>/segments/master.m3u8".
	masterURL := "/" + path.Join(e.deps.Buckets.Processed, basePath, "master.m3u8")
	return &stage.UploadOutput{
		VideoID:            man.VideoID,
		WorkspaceRoot:      man.WorkspaceRoot,
		MasterURL:          masterURL,
		Bucket:             e.deps.Buckets.Processed,
		BasePath:           basePath,
		TotalFiles:         totalFiles,
		TotalBytes:         totalBytes,
		AvailableQualities: man.AvailableQualities,
	}, nil
}

func (e *Engine) uploadFile(ctx context.Context, localPath, key string, files *int, bytes *int64) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if err := e.deps.Storage.PutFile(ctx, e.deps.Buckets.Processed, key, localPath); err != nil {
		return err
	}
	*files++
	*bytes += info.Size()
	return nil
}
