package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestNew_CreatesDirectoryTree(t *testing.T) {
	tempDir := t.TempDir()
	videoID := uuid.New()

	ws, err := New(tempDir, videoID)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, dir := range []string{ws.Root, ws.TranscodedDir, ws.SegmentsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected dir %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	wantRoot := filepath.Join(tempDir, videoID.String())
	if ws.Root != wantRoot {
		t.Errorf("Root = %q, want %q", ws.Root, wantRoot)
	}
}

func TestNew_IdempotentOnRetry(t *testing.T) {
	tempDir := t.TempDir()
	videoID := uuid.New()

	ws1, err := New(tempDir, videoID)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}

	marker := filepath.Join(ws1.TranscodedDir, "already-there.mp4")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	ws2, err := New(tempDir, videoID)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	if ws2.Root != ws1.Root {
		t.Errorf("Root changed across retries: %q vs %q", ws1.Root, ws2.Root)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("retry wiped existing scratch contents: %v", err)
	}
}

func TestWorkspace_RawPath(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		ext  string
		want string
	}{
		{"mp4", "raw.mp4"},
		{".mp4", "raw.mp4"},
		{"", "raw"},
	}

	for _, tt := range tests {
		got := ws.RawPath(tt.ext)
		want := filepath.Join(ws.Root, tt.want)
		if got != want {
			t.Errorf("RawPath(%q) = %q, want %q", tt.ext, got, want)
		}
	}
}

func TestWorkspace_SegmentsDirFor(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	dir, err := ws.SegmentsDirFor("1080p")
	if err != nil {
		t.Fatalf("SegmentsDirFor() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be an existing directory", dir)
	}
}

func TestWorkspace_MasterPlaylistPath(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := filepath.Join(ws.SegmentsDir, "master.m3u8")
	if got := ws.MasterPlaylistPath(); got != want {
		t.Errorf("MasterPlaylistPath() = %q, want %q", got, want)
	}
}

func TestWorkspace_Cleanup(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Errorf("expected workspace root to be removed, stat err = %v", err)
	}
}

func TestWorkspace_Cleanup_AlreadyGone(t *testing.T) {
	ws, err := New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("first Cleanup() error = %v", err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Errorf("second Cleanup() on already-removed dir should be a no-op, got: %v", err)
	}
}
