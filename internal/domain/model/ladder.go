package model

import (
	"fmt"
	"strconv"
	"strings"
)

// LadderEntry describes one rendition target: a resolution and bitrate
// pair keyed by quality label (e.g. "1080p").
type LadderEntry struct {
	Label        string
	Width        int
	Height       int
	VideoBitrate string // e.g. "5000k", matches the ffmpeg -b:v argument
	AudioBitrate string // fixed at "128k" across the ladder
}

// BitrateBps parses VideoBitrate (e.g. "5000k") into bits per second, used
// by the Manifest stage to compute EXT-X-STREAM-INF BANDWIDTH.
func (e LadderEntry) BitrateBps() (int64, error) {
	return parseKbpsLabel(e.VideoBitrate)
}

func parseKbpsLabel(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty bitrate label")
	}
	mult := int64(1)
	if strings.HasSuffix(s, "k") || strings.HasSuffix(s, "K") {
		mult = 1000
		s = s[:len(s)-1]
	} else if strings.HasSuffix(s, "m") || strings.HasSuffix(s, "M") {
		mult = 1_000_000
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bitrate label %q: %w", s, err)
	}
	return n * mult, nil
}

// QualityOrder is the fixed descending preference order used by the
// Manifest stage (spec.md §4.6) to list renditions in the master playlist.
var QualityOrder = []string{
	"2160p", "1440p", "1080p", "720p", "480p", "360p", "240p", "144p",
}

// DefaultLadder is the reference quality ladder from spec.md §3.
func DefaultLadder() map[string]LadderEntry {
	const audio = "128k"
	return map[string]LadderEntry{
		"2160p": {Label: "2160p", Width: 3840, Height: 2160, VideoBitrate: "20000k", AudioBitrate: audio},
		"1440p": {Label: "1440p", Width: 2560, Height: 1440, VideoBitrate: "10000k", AudioBitrate: audio},
		"1080p": {Label: "1080p", Width: 1920, Height: 1080, VideoBitrate: "5000k", AudioBitrate: audio},
		"720p":  {Label: "720p", Width: 1280, Height: 720, VideoBitrate: "2500k", AudioBitrate: audio},
		"480p":  {Label: "480p", Width: 854, Height: 480, VideoBitrate: "1000k", AudioBitrate: audio},
		"360p":  {Label: "360p", Width: 640, Height: 360, VideoBitrate: "500k", AudioBitrate: audio},
		"240p":  {Label: "240p", Width: 426, Height: 240, VideoBitrate: "300k", AudioBitrate: audio},
		"144p":  {Label: "144p", Width: 256, Height: 144, VideoBitrate: "200k", AudioBitrate: audio},
	}
}

// OrderQualities filters QualityOrder down to the labels present in the
// given set, preserving the fixed descending preference order.
func OrderQualities(present map[string]bool) []string {
	ordered := make([]string, 0, len(present))
	for _, q := range QualityOrder {
		if present[q] {
			ordered = append(ordered, q)
		}
	}
	return ordered
}
