package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gostream/pipeline/internal/domain/model"
	"github.com/gostream/pipeline/internal/domain/repository"
	"github.com/gostream/pipeline/internal/usecase"
)

// VideoStatusResponse is the polling payload described in spec.md §6: the
// persisted status mapped to a progress/message pair, plus the terminal
// fields a client needs to stop polling.
type VideoStatusResponse struct {
	VideoID            string   `json:"video_id"`
	Status             string   `json:"status"`
	Progress           int      `json:"progress"`
	Message            string   `json:"message"`
	Error              string   `json:"error,omitempty"`
	ManifestURL        string   `json:"manifest_url,omitempty"`
	AvailableQualities []string `json:"available_qualities,omitempty"`
	IsCompleted        bool     `json:"is_completed"`
	IsFailed           bool     `json:"is_failed"`
}

// VideoHandler serves the status-polling endpoint. Account creation, video
// upload intake, and credential handling live outside this package, per
// spec.md §6's "treated as external collaborators".
type VideoHandler struct {
	videos usecase.VideoStatusReader
}

// NewVideoHandler creates a VideoHandler backed by the cached status reader.
func NewVideoHandler(videos usecase.VideoStatusReader) *VideoHandler {
	return &VideoHandler{videos: videos}
}

// GetStatus handles GET /v1/videos/{id}, scoped to the requesting owner via
// the X-Owner-Id header set by the (out-of-scope) auth layer upstream.
// Authorization failure is 403; a missing row is 404.
func (h *VideoHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	videoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_video_id", "Video ID must be a valid UUID")
		return
	}

	ownerID, err := uuid.Parse(r.Header.Get("X-Owner-Id"))
	if err != nil {
		Error(w, http.StatusUnauthorized, "missing_owner", "X-Owner-Id header must be a valid UUID")
		return
	}

	video, err := h.videos.GetByID(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			Error(w, http.StatusNotFound, "video_not_found", "Video not found")
			return
		}
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	if video.OwnerID != ownerID {
		Error(w, http.StatusForbidden, "forbidden", "Video belongs to a different owner")
		return
	}

	JSON(w, http.StatusOK, toStatusResponse(video))
}

func toStatusResponse(v *model.Video) VideoStatusResponse {
	progress, message := v.ProcessingStatus.Progress()
	return VideoStatusResponse{
		VideoID:            v.ID.String(),
		Status:             v.ProcessingStatus.String(),
		Progress:           progress,
		Message:            message,
		Error:              v.ProcessingError,
		ManifestURL:        v.ManifestURL,
		AvailableQualities: v.AvailableQualities,
		IsCompleted:        v.IsCompleted(),
		IsFailed:           v.IsFailed(),
	}
}
