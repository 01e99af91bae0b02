// Package manifest builds the HLS master playlist for a video's completed
// renditions, per spec.md §4.6, using grafov/m3u8 for the variant-stream
// encoding instead of hand-built string concatenation.
package manifest

import (
	"fmt"
	"os"

	"github.com/grafov/m3u8"

	"github.com/gostream/pipeline/internal/domain/model"
)

// Rendition describes one segmented quality available for the master
// playlist: its relative playlist URI and the bandwidth/resolution
// attributes spec.md §4.6 requires on its EXT-X-STREAM-INF entry.
type Rendition struct {
	Label        string
	PlaylistURI  string // relative to the master playlist, e.g. "1080p/playlist.m3u8"
	Width        int
	Height       int
	BandwidthBps int64
}

// Build writes a master playlist to outputPath listing renditions in the
// fixed descending quality order of spec.md §4.6 (filtered to those
// present), and returns the ordered list of quality labels actually
// written — the `available_qualities` value for the Manifest stage output.
func Build(outputPath string, renditions map[string]Rendition) ([]string, error) {
	if len(renditions) == 0 {
		return nil, fmt.Errorf("manifest: no renditions to build a master playlist from")
	}

	present := make(map[string]bool, len(renditions))
	for label := range renditions {
		present[label] = true
	}
	ordered := model.OrderQualities(present)

	playlist := m3u8.NewMasterPlaylist()
	for _, label := range ordered {
		r := renditions[label]
		params := m3u8.VariantParams{
			Bandwidth:  uint32(r.BandwidthBps),
			Resolution: fmt.Sprintf("%dx%d", r.Width, r.Height),
		}
		playlist.Append(r.PlaylistURI, nil, params)
	}

	buf := playlist.Encode()
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write master playlist: %w", err)
	}

	return ordered, nil
}
