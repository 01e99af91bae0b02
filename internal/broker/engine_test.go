package broker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/gostream/pipeline/internal/pipeline/probe"
	"github.com/gostream/pipeline/internal/pipeline/transcode"
)

// fakeFFprobe writes a shell script that prints fixed ffprobe JSON
// regardless of its arguments, so Prober.Probe can run against it without
// a real ffprobe binary on the test host.
func fakeFFprobe(t *testing.T, width, height int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffprobe")

	json := fmt.Sprintf(`{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": %d, "height": %d,
     "r_frame_rate": "30000/1001", "duration": "12.5", "bit_rate": "4000000"},
    {"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000"}
  ],
  "format": {"duration": "12.5", "bit_rate": "4128000", "size": "6442450944"}
}`, width, height)

	script := "#!/bin/bash\ncat <<'EOF'\n" + json + "\nEOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffprobe: %v", err)
	}
	return path
}

// fakeFFmpeg writes a shell script standing in for ffmpeg, mirroring
// internal/pipeline/transcode's own test helper.
func fakeFFmpeg(t *testing.T, segments int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")

	script := "#!/bin/bash\nout=\"${@: -1}\"\necho fake > \"$out\"\n"
	if segments > 0 {
		script += "outDir=\"$(dirname \"$out\")\"\n"
		for i := 0; i < segments; i++ {
			script += fmt.Sprintf("echo fake > \"$outDir\"/segment_%04d.ts\n", i)
		}
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func fastPolicy() StagePolicy {
	return StagePolicy{MaxAttempts: 2, Backoff: time.Millisecond}
}

func testEngine(t *testing.T, video *model.Video, storage *mockObjectStorage) (*Engine, *mockVideoRepository, string) {
	t.Helper()

	tempDir := t.TempDir()

	videos := &mockVideoRepository{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (*model.Video, error) {
			if id != video.ID {
				return nil, repository.ErrVideoNotFound
			}
			return video, nil
		},
		updateFn: func(ctx context.Context, v *model.Video) error {
			*video = *v
			return nil
		},
		updateStatusFn: func(ctx context.Context, id uuid.UUID, status model.Status) error {
			video.ProcessingStatus = status
			return nil
		},
	}

	deps := Dependencies{
		Videos:  videos,
		Storage: storage,
		Joins:   newMockJoinStore(),
		Cache:   &mockVideoCache{},
		Prober:  probe.NewProber(fakeFFprobe(t, 1920, 1080)),
		Encoder: transcode.NewEncoder(fakeFFmpeg(t, 3), 0, 6),
		Buckets: Buckets{Raw: "raw", Processed: "processed"},
		Stages: Stages{
			Prepare:   fastPolicy(),
			Transcode: fastPolicy(),
			Segment:   fastPolicy(),
			Manifest:  fastPolicy(),
			Upload:    fastPolicy(),
			Finalize:  fastPolicy(),
		},
		TempDir:           tempDir,
		FanOutConcurrency: 2,
		Ladder: map[string]model.LadderEntry{
			"720p": {Label: "720p", Width: 1280, Height: 720, VideoBitrate: "2500k", AudioBitrate: "128k"},
		},
	}

	return New(deps), videos, tempDir
}

// assertWorkspaceGone fails the test if videoID's workspace directory still
// exists under tempDir, e.g. after Run has returned.
func assertWorkspaceGone(t *testing.T, tempDir string, videoID uuid.UUID) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(tempDir, videoID.String())); !os.IsNotExist(err) {
		t.Errorf("expected workspace for %s to be removed, stat err = %v", videoID, err)
	}
}

func TestEngine_Run_HappyPath(t *testing.T) {
	video, err := model.NewVideo(uuid.New(), "raw/source.mp4")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	if err := video.TransitionTo(model.StatusQueued); err != nil {
		t.Fatalf("TransitionTo(queued) error = %v", err)
	}

	storage := &mockObjectStorage{
		streamGetFn: func(ctx context.Context, bucket, key string, w io.Writer) error {
			_, err := w.Write([]byte("fake source bytes"))
			return err
		},
	}

	engine, _, tempDir := testEngine(t, video, storage)

	if err := engine.Run(context.Background(), video.ID); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !video.IsCompleted() {
		t.Fatalf("expected video to be completed, got status=%s", video.ProcessingStatus)
	}
	wantManifestURL := "/processed/" + video.ID.String() + "/segments/master.m3u8"
	if video.ManifestURL != wantManifestURL {
		t.Errorf("ManifestURL = %q, want %q", video.ManifestURL, wantManifestURL)
	}
	if len(video.AvailableQualities) != 1 || video.AvailableQualities[0] != "720p" {
		t.Errorf("available qualities = %v, want [720p]", video.AvailableQualities)
	}
	assertWorkspaceGone(t, tempDir, video.ID)
}

func TestEngine_Run_SkipsUpscale(t *testing.T) {
	video, _ := model.NewVideo(uuid.New(), "raw/source.mp4")
	video.TransitionTo(model.StatusQueued)

	storage := &mockObjectStorage{
		streamGetFn: func(ctx context.Context, bucket, key string, w io.Writer) error {
			_, err := w.Write([]byte("fake source bytes"))
			return err
		},
	}

	engine, _, tempDir := testEngine(t, video, storage)
	// Probed source is 1080p; request a 2160p rendition that must be skipped.
	engine.deps.Prober = probe.NewProber(fakeFFprobe(t, 1920, 1080))
	engine.deps.Ladder = map[string]model.LadderEntry{
		"2160p": {Label: "2160p", Width: 3840, Height: 2160, VideoBitrate: "20000k", AudioBitrate: "128k"},
	}

	err := engine.Run(context.Background(), video.ID)
	if err == nil {
		t.Fatal("expected Run() to fail when every rendition is skipped")
	}
	if !video.IsFailed() {
		t.Fatalf("expected video to be failed, got status=%s", video.ProcessingStatus)
	}
	// The workspace must be deleted on the failure path too, not just on
	// success.
	assertWorkspaceGone(t, tempDir, video.ID)
}

func TestEngine_Run_WrongInitialStatus(t *testing.T) {
	video, _ := model.NewVideo(uuid.New(), "raw/source.mp4")
	// Left in StatusUploading: Prepare requires StatusQueued.

	engine, _, _ := testEngine(t, video, &mockObjectStorage{})

	if err := engine.Run(context.Background(), video.ID); err == nil {
		t.Fatal("expected Run() to fail when the video is not queued")
	}
}

func TestEngine_MarkFailed_Idempotent(t *testing.T) {
	video, _ := model.NewVideo(uuid.New(), "raw/source.mp4")
	video.TransitionTo(model.StatusQueued)
	video.TransitionTo(model.StatusPreparing)
	if err := video.Fail("boom"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	engine, _, _ := testEngine(t, video, &mockObjectStorage{})
	engine.markFailed(context.Background(), video.ID, "second failure should be a no-op")

	if video.ProcessingError != "boom" {
		t.Errorf("processing error overwritten: got %q, want %q", video.ProcessingError, "boom")
	}
}
