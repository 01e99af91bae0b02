// Package probe extracts source video metadata by invoking ffprobe,
// grounded in the reference implementation's ffmpeg_service.py
// (stream-preferred, format-fallback field resolution and num/den
// frame-rate parsing).
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffprobe "gopkg.in/vansante/go-ffprobe.v2"

	"github.com/gostream/pipeline/internal/domain/model"
)

// Timeout bounds a single probe invocation, per spec.md §5.
const Timeout = 30 * time.Second

// ErrNoVideoStream is returned when ffprobe's output contains no stream
// with codec_type "video" — the probe succeeded but the source is unusable.
var ErrNoVideoStream = errors.New("no video stream found in file")

// Prober extracts Metadata from a local file via ffprobe.
type Prober struct {
	ffprobePath string
}

// NewProber creates a Prober that invokes the ffprobe binary at path. An
// empty path falls back to "ffprobe" resolved from PATH. The binary path
// is process-global in go-ffprobe.v2, so construction sets it once; a
// worker runs a single ffprobe binary for its lifetime.
func NewProber(path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	ffprobe.SetFFProbeBinPath(path)
	return &Prober{ffprobePath: path}
}

// Probe runs ffprobe against localPath and returns the parsed metadata.
// A non-zero ffprobe exit or a timeout surfaces as a fatal error (§4.2:
// probe failure is corrupt-source, not retried).
func (p *Prober) Probe(ctx context.Context, localPath string) (*model.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(ctx, localPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeData(data)
}

func parseProbeData(data *ffprobe.ProbeData) (*model.Metadata, error) {
	var videoStream, audioStream *ffprobe.Stream
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if videoStream == nil {
				videoStream = s
			}
		case "audio":
			if audioStream == nil {
				audioStream = s
			}
		}
	}

	if videoStream == nil {
		return nil, ErrNoVideoStream
	}

	duration := firstNonZeroFloat(videoStream.Duration, data.Format.Duration)
	bitrate := firstNonZeroInt(videoStream.BitRate, data.Format.BitRate)
	fileSize := parseInt(data.Format.Size)

	var audioCodec string
	var audioBitrate int64
	if audioStream != nil {
		audioCodec = audioStream.CodecName
		audioBitrate = parseInt(audioStream.BitRate)
	}

	return &model.Metadata{
		DurationSeconds: duration,
		Width:           videoStream.Width,
		Height:          videoStream.Height,
		Codec:           videoStream.CodecName,
		BitrateBps:      bitrate,
		FrameRate:       parseFrameRate(videoStream.RFrameRate),
		FileSize:        fileSize,
		AudioCodec:      audioCodec,
		AudioBitrateBps: audioBitrate,
	}, nil
}

// parseFrameRate parses an ffprobe "num/den" rational (e.g. "30000/1001")
// into a float, returning 0 on malformed input or a zero denominator.
func parseFrameRate(raw string) float64 {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		return v
	}

	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// firstNonZeroFloat prefers the stream value, falling back to the format
// value, mirroring _parse_ffprobe_output's "stream first, then format".
func firstNonZeroFloat(stream, format string) float64 {
	if v := parseFloat(stream); v != 0 {
		return v
	}
	return parseFloat(format)
}

func firstNonZeroInt(stream, format string) int64 {
	if v := parseInt(stream); v != 0 {
		return v
	}
	return parseInt(format)
}
