package broker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/pipeline/manifest"
	"github.com/gostream/pipeline/internal/pipeline/stage"
)

// buildManifest implements spec.md §4.6: build the master playlist from
// every segmented quality, ordered by the fixed descending preference.
func (e *Engine) buildManifest(ctx context.Context, log *slog.Logger, seg *stage.SegmentOutput) (*stage.ManifestOutput, error) {
	log = log.With("stage", "manifest")

	if err := e.setStatus(ctx, seg.VideoID, model.StatusCreatingManifest); err != nil {
		return nil, fmt.Errorf("manifest stage: %w", err)
	}

	renditions := make(map[string]manifest.Rendition, len(seg.SegmentedFiles))
	for quality, file := range seg.SegmentedFiles {
		entry, ok := e.deps.Ladder[quality]
		if !ok {
			return nil, fmt.Errorf("manifest stage: %w: no ladder entry for quality %s", ErrValidation, quality)
		}
		bandwidth, err := entry.BitrateBps()
		if err != nil {
			return nil, fmt.Errorf("manifest stage: %w: %v", ErrValidation, err)
		}
		renditions[quality] = manifest.Rendition{
			Label:        quality,
			PlaylistURI:  filepath.Join(quality, filepath.Base(file.PlaylistPath)),
			Width:        entry.Width,
			Height:       entry.Height,
			BandwidthBps: bandwidth,
		}
	}

	masterPath := filepath.Join(seg.SegmentsDir, "master.m3u8")
	policy := e.deps.Stages.Manifest
	var ordered []string
	err := retryStage(ctx, policy.MaxAttempts, policy.Backoff, func(attempt int) error {
		built, err := manifest.Build(masterPath, renditions)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		ordered = built
		return nil
	})
	if err != nil {
		e.markFailed(ctx, seg.VideoID, fmt.Sprintf("manifest build failed: %v", err))
		e.cleanupWorkspace(log, seg.WorkspaceRoot)
		return nil, fmt.Errorf("manifest stage: %w", err)
	}

	log.Info("master playlist built", "qualities", ordered)

	return &stage.ManifestOutput{
		VideoID:            seg.VideoID,
		WorkspaceRoot:      seg.WorkspaceRoot,
		MasterPlaylistPath: masterPath,
		SegmentsDir:        seg.SegmentsDir,
		AvailableQualities: ordered,
	}, nil
}
