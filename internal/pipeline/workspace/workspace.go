// Package workspace manages the per-job local directory tree: raw source,
// transcoded renditions, and segments, as described in spec.md §3's Job
// context and §4.2 step 2.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the local scratch directory tree for one video's workflow
// run: <root>/<video_id>/{raw.<ext>, transcoded/, segments/<quality>/}.
// It is exclusively owned by the workflow for its lifetime and is deleted,
// in full, by the engine's cleanupWorkspace — by Finalize on the success
// path, and beside every markFailed call on the failure path. Engine error
// exits that do not mark the video failed leave it in place.
type Workspace struct {
	Root          string
	TranscodedDir string
	SegmentsDir   string
}

// New allocates the directory tree under tempDir for videoID. Re-creating
// a Workspace for the same videoID is safe: MkdirAll is idempotent, so a
// retried Prepare attempt reuses the same tree.
func New(tempDir string, videoID uuid.UUID) (*Workspace, error) {
	root := filepath.Join(tempDir, videoID.String())
	ws := &Workspace{
		Root:          root,
		TranscodedDir: filepath.Join(root, "transcoded"),
		SegmentsDir:   filepath.Join(root, "segments"),
	}

	for _, dir := range []string{ws.Root, ws.TranscodedDir, ws.SegmentsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace dir %s: %w", dir, err)
		}
	}
	return ws, nil
}

// RawPath returns the path raw source bytes are streamed to, preserving
// the original file extension.
func (w *Workspace) RawPath(ext string) string {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return filepath.Join(w.Root, "raw"+ext)
}

// SegmentsDirFor returns (and creates) the per-quality segments directory.
func (w *Workspace) SegmentsDirFor(quality string) (string, error) {
	dir := filepath.Join(w.SegmentsDir, quality)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create segments dir for %s: %w", quality, err)
	}
	return dir, nil
}

// MasterPlaylistPath returns the path the Manifest stage writes the master
// playlist to.
func (w *Workspace) MasterPlaylistPath() string {
	return filepath.Join(w.SegmentsDir, "master.m3u8")
}

// Cleanup removes the entire workspace tree. The engine calls it after
// committing a completed or failed status (see Workspace for the paths
// that do not). A cleanup failure is logged by the caller, not fatal: the
// video row has already been committed by the time cleanup runs.
func (w *Workspace) Cleanup() error {
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Root, err)
	}
	return nil
}
