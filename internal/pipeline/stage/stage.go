// Package stage defines the typed payloads passed between pipeline stages.
// The reference implementation threads loosely-typed dictionaries between
// Celery tasks; this rewrite replaces each hop with an explicit struct, per
// spec.md §9's "dynamic typing → typed stage payloads" design note, with a
// tagged Ok|Skip sum type for Transcode's per-quality result.
package stage

import (
	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
)

// JobContext is the data threaded through one workflow run, assembled
// incrementally by each stage per spec.md §3's "Job context".
type JobContext struct {
	VideoID        uuid.UUID
	WorkspaceRoot  string
	RawLocalPath   string
	TranscodedDir  string
	SegmentsDir    string
	ProbedMetadata *model.Metadata
}

// PrepareOutput is Prepare's return value, consumed by every Transcode
// fan-out child.
type PrepareOutput struct {
	VideoID        uuid.UUID
	RawLocalPath   string
	WorkspaceRoot  string
	TranscodedDir  string
	SegmentsDir    string
	ProbedMetadata *model.Metadata
}

// TranscodeResult is a fan-out child's outcome: a tagged Ok|Skip value.
// Skipped==true means the no-upscale policy fired (§4.3 step 3) and Ok
// fields are zero; a nil *TranscodeResult (what the Transcode stage
// records, as JSON null, for a rendition that exhausted its encode
// retries) is treated the same as Skipped by Aggregate's filter.
type TranscodeResult struct {
	VideoID    uuid.UUID
	Quality    string
	Skipped    bool
	SkipReason string
	OutputPath string
	FileSize   int64
}

// Dropped reports whether Aggregate's filter excludes this result, per
// spec.md §9's "drop iff skipped == true OR result is null" rule. A nil
// receiver is dropped (a child whose encode exhausted its retries).
func (r *TranscodeResult) Dropped() bool {
	return r == nil || r.Skipped
}

// TranscodedFile records one surviving rendition's local path and size.
type TranscodedFile struct {
	Path string
	Size int64
}

// AggregateOutput is Aggregate's return value: the surviving transcoded
// renditions, keyed by quality label.
type AggregateOutput struct {
	VideoID         uuid.UUID
	WorkspaceRoot   string
	TranscodedFiles map[string]TranscodedFile
	SegmentsDir     string
}

// SegmentedFile records one rendition's HLS segmenting output.
type SegmentedFile struct {
	PlaylistPath string
	SegmentsDir  string
	SegmentCount int
}

// SegmentOutput is Segment's return value.
type SegmentOutput struct {
	VideoID        uuid.UUID
	WorkspaceRoot  string
	SegmentedFiles map[string]SegmentedFile
	SegmentsDir    string
}

// ManifestOutput is Manifest's return value.
type ManifestOutput struct {
	VideoID            uuid.UUID
	WorkspaceRoot      string
	MasterPlaylistPath string
	SegmentsDir        string
	AvailableQualities []string
}

// UploadOutput is Upload's return value.
type UploadOutput struct {
	VideoID            uuid.UUID
	WorkspaceRoot      string
	MasterURL          string
	Bucket             string
	BasePath           string
	TotalFiles         int
	TotalBytes         int64
	AvailableQualities []string
}
