// Package transcode invokes ffmpeg to produce one rendition of the quality
// ladder and, separately, to remux a rendition into HLS segments. It
// follows the ladder-driven width/height/bitrate contract of spec.md §4.3,
// with two entry points matching the Transcode and Segment stages.
package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gostream/pipeline/internal/domain/model"
)

const (
	videoCodec    = "libx264"
	videoPreset   = "medium"
	videoCRF      = "23"
	audioCodec    = "aac"
	audioBitrate  = "128k"
	hlsPlaylist   = "playlist.m3u8"
	segmentPrefix = "segment_"
)

// Encoder shells out to ffmpeg for rendition encoding and HLS segmenting.
type Encoder struct {
	ffmpegPath     string
	threads        int
	segmentSeconds int
}

// NewEncoder creates an Encoder bound to the given ffmpeg binary. threads
// of 0 lets ffmpeg pick automatically (`-threads 0`). segmentSeconds sets
// the HLS target segment duration used by Segment.
func NewEncoder(ffmpegPath string, threads, segmentSeconds int) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if segmentSeconds <= 0 {
		segmentSeconds = 6
	}
	return &Encoder{ffmpegPath: ffmpegPath, threads: threads, segmentSeconds: segmentSeconds}
}

// RenditionResult is the outcome of encoding one ladder entry.
type RenditionResult struct {
	OutputPath string
	FileSize   int64
}

// EncodeRendition runs ffmpeg against sourcePath to produce a single
// rendition at entry's target width/height/bitrate, per spec.md §4.3 step
// 5: H.264/libx264, preset medium, CRF 23, scale=W:H, configured video
// bitrate, AAC 128kbps audio, output <outputDir>/<quality>.mp4.
func (e *Encoder) EncodeRendition(ctx context.Context, sourcePath, outputDir string, entry model.LadderEntry) (*RenditionResult, error) {
	if err := assertReadableNonEmpty(sourcePath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	outputPath := filepath.Join(outputDir, entry.Label+".mp4")
	args := e.renditionArgs(sourcePath, outputPath, entry)

	if err := e.run(ctx, args); err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat encoded rendition: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("encoded rendition is empty: %s", outputPath)
	}

	return &RenditionResult{OutputPath: outputPath, FileSize: info.Size()}, nil
}

func (e *Encoder) renditionArgs(sourcePath, outputPath string, entry model.LadderEntry) []string {
	scale := fmt.Sprintf("scale=%d:%d", entry.Width, entry.Height)
	args := []string{
		"-y",
		"-i", sourcePath,
		"-vf", scale,
		"-c:v", videoCodec,
		"-preset", videoPreset,
		"-crf", videoCRF,
		"-b:v", entry.VideoBitrate,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
	}
	if e.threads > 0 {
		args = append(args, "-threads", fmt.Sprintf("%d", e.threads))
	}
	return append(args, outputPath)
}

// SegmentResult is the outcome of remuxing one rendition into HLS.
type SegmentResult struct {
	PlaylistPath string
	SegmentsDir  string
	SegmentCount int
}

// Segment remuxes renditionPath (already H.264/AAC) into HLS segments
// under outputDir, per spec.md §4.5: remux-only (-c copy), target segment
// duration, unbounded playlist size, segment_%04d.ts naming.
func (e *Encoder) Segment(ctx context.Context, renditionPath, outputDir string) (*SegmentResult, error) {
	if err := assertReadableNonEmpty(renditionPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create segments dir: %w", err)
	}

	playlistPath := filepath.Join(outputDir, hlsPlaylist)
	segmentPattern := filepath.Join(outputDir, segmentPrefix+"%04d.ts")

	args := []string{
		"-y",
		"-i", renditionPath,
		"-c", "copy",
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", e.segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", segmentPattern,
		playlistPath,
	}

	if err := e.run(ctx, args); err != nil {
		return nil, err
	}

	if _, err := os.Stat(playlistPath); err != nil {
		return nil, fmt.Errorf("hls playlist not produced: %w", err)
	}

	count, err := countSegments(outputDir)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("no segments produced in %s", outputDir)
	}

	return &SegmentResult{PlaylistPath: playlistPath, SegmentsDir: outputDir, SegmentCount: count}, nil
}

func (e *Encoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

func assertReadableNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("source file unreadable: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source path is a directory: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("source file is empty: %s", path)
	}
	return nil
}

func countSegments(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read segments dir: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ts") {
			count++
		}
	}
	return count, nil
}

// SortedSegmentFiles lists a rendition's segment_*.ts files in lexical
// order, the order spec.md §4.7 requires for upload.
func SortedSegmentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read segments dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ts") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
