// Package model holds the core domain entities for the video processing
// pipeline: the video record, its status state machine, and the quality
// ladder configuration.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of a video, persisted as a
// single column and advanced by the pipeline stages in strict order.
type Status string

const (
	StatusUploading          Status = "uploading"
	StatusQueued             Status = "queued"
	StatusPreparing          Status = "preparing"
	StatusTranscoding        Status = "transcoding"
	StatusAggregating        Status = "aggregating"
	StatusSegmenting         Status = "segmenting"
	StatusCreatingManifest   Status = "creating_manifest"
	StatusUploadingToStorage Status = "uploading_to_storage"
	StatusFinalizing         Status = "finalizing"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

// validTransitions encodes the directed graph from spec.md §4.9. Every
// non-terminal state may additionally transition to StatusFailed; that
// edge is handled separately in CanTransitionTo rather than repeated here.
var validTransitions = map[Status][]Status{
	StatusUploading:          {StatusQueued},
	StatusQueued:             {StatusPreparing},
	StatusPreparing:          {StatusTranscoding},
	StatusTranscoding:        {StatusAggregating},
	StatusAggregating:        {StatusSegmenting},
	StatusSegmenting:         {StatusCreatingManifest},
	StatusCreatingManifest:   {StatusUploadingToStorage},
	StatusUploadingToStorage: {StatusFinalizing},
	StatusFinalizing:         {StatusCompleted},
	StatusCompleted:          {},
	StatusFailed:             {},
}

// progressTable maps each status to the (progress, message) pair returned
// by the polling endpoint, per spec.md §4.9.
var progressTable = map[Status]struct {
	Progress int
	Message  string
}{
	StatusUploading:          {5, "Uploading video"},
	StatusQueued:             {15, "Queued for processing"},
	StatusPreparing:          {25, "Analyzing video"},
	StatusTranscoding:        {50, "Creating quality versions"},
	StatusAggregating:        {60, "Compiling outputs"},
	StatusSegmenting:         {70, "Preparing for streaming"},
	StatusCreatingManifest:   {80, "Generating playlists"},
	StatusUploadingToStorage: {90, "Saving to storage"},
	StatusFinalizing:         {95, "Almost done"},
	StatusCompleted:          {100, "Complete"},
	StatusFailed:             {0, "Failed"},
}

func (s Status) IsValid() bool {
	_, ok := progressTable[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is an allowed edge. Any
// non-terminal status may transition to StatusFailed.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusFailed {
		return !s.IsTerminal()
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Progress returns the (progress, message) pair consumed by the polling
// endpoint. Unknown statuses return (0, "").
func (s Status) Progress() (int, string) {
	p, ok := progressTable[s]
	if !ok {
		return 0, ""
	}
	return p.Progress, p.Message
}

func (s Status) String() string {
	return string(s)
}

// Metadata is the structured probe result persisted as processing_metadata.
type Metadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Codec           string  `json:"codec"`
	BitrateBps      int64   `json:"bitrate"`
	FrameRate       float64 `json:"frame_rate"`
	FileSize        int64   `json:"file_size"`
	AudioCodec      string  `json:"audio_codec,omitempty"`
	AudioBitrateBps int64   `json:"audio_bitrate,omitempty"`
}

// Video is the persisted record described in spec.md §3.
type Video struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	RawSourceKey       string
	ProcessingStatus   Status
	ProcessingError    string
	ProcessingMetadata *Metadata
	ManifestURL        string
	AvailableQualities []string
	WorkflowHandle     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var (
	ErrInvalidOwnerID    = errors.New("owner ID cannot be nil")
	ErrInvalidSourceKey  = errors.New("raw source key cannot be empty")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// NewVideo creates a video row in StatusUploading, mirroring the moment the
// upload endpoint registers a video before the pipeline is triggered.
func NewVideo(ownerID uuid.UUID, rawSourceKey string) (*Video, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if rawSourceKey == "" {
		return nil, ErrInvalidSourceKey
	}

	now := time.Now()
	return &Video{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		RawSourceKey:     rawSourceKey,
		ProcessingStatus: StatusUploading,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// TransitionTo advances the status, enforcing the directed graph. The
// workflow handle is cleared whenever the video reaches a terminal state,
// per spec.md §3's invariant that workflow_handle is non-null only while
// status is in {queued ... finalizing}.
func (v *Video) TransitionTo(next Status) error {
	if !next.IsValid() {
		return ErrInvalidTransition
	}
	if !v.ProcessingStatus.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	v.ProcessingStatus = next
	v.UpdatedAt = time.Now()
	if next.IsTerminal() {
		v.WorkflowHandle = ""
	}
	return nil
}

// Fail transitions to StatusFailed and records the error, enforcing the
// invariant that processing_error is non-empty iff status == failed.
func (v *Video) Fail(reason string) error {
	if err := v.TransitionTo(StatusFailed); err != nil {
		return err
	}
	v.ProcessingError = reason
	return nil
}

// Complete transitions to StatusCompleted and records the Finalize output,
// enforcing the invariant that manifest_url/available_qualities are only
// populated on completion.
func (v *Video) Complete(manifestURL string, qualities []string) error {
	if err := v.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	v.ManifestURL = manifestURL
	v.AvailableQualities = qualities
	v.ProcessingError = ""
	return nil
}

func (v *Video) IsCompleted() bool {
	return v.ProcessingStatus == StatusCompleted
}

func (v *Video) IsFailed() bool {
	return v.ProcessingStatus == StatusFailed
}
