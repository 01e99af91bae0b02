package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/pipeline/stage"
)

// finalize implements spec.md §4.8: move the row to finalizing, then
// commit the completed status with its
// durable manifest_url (the fixed "/<bucket>/.../master.m3u8" key, not a
// time-limited presigned link — a presigned URL would go dead long before
// a future poll of a completed video) and available qualities, then
// best-effort clean up the local workspace. A cleanup failure is logged as
// ErrWorkspaceCleanup but never fails the workflow — the DB row has already
// committed to completed, and a leftover workspace directory is a
// disk-hygiene concern, not a correctness one.
func (e *Engine) finalize(ctx context.Context, log *slog.Logger, up *stage.UploadOutput) error {
	log = log.With("stage", "finalize")

	if err := e.setStatus(ctx, up.VideoID, model.StatusFinalizing); err != nil {
		return fmt.Errorf("finalize stage: %w", err)
	}

	video, err := e.deps.Videos.GetByID(ctx, up.VideoID)
	if err != nil {
		return fmt.Errorf("finalize stage: %w: load video: %v", ErrValidation, err)
	}

	if err := video.Complete(up.MasterURL, up.AvailableQualities); err != nil {
		return fmt.Errorf("finalize stage: %w: %v", ErrValidation, err)
	}
	if err := e.deps.Videos.Update(ctx, video); err != nil {
		return fmt.Errorf("finalize stage: %w: persist completed status: %v", ErrTransient, err)
	}
	e.invalidateCache(ctx, up.VideoID)
	e.cleanupWorkspace(log, up.WorkspaceRoot)

	log.Info("video finalized", "manifest_url", up.MasterURL, "qualities", up.AvailableQualities)
	return nil
}
