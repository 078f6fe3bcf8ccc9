// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/objectstore"
	"github.com/pulsedev/pulsestream/internal/pipeline"
	"github.com/pulsedev/pulsestream/internal/store"
)

// Upload accepts a multipart video upload, stores the payload, creates the
// pending record, and queues the moderation run. The response returns
// immediately; moderation progress arrives over the event channel.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	maxBytes := h.config.Upload.MaxSizeMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "UPLOAD_ERROR", "Could not parse multipart form", err)
		return
	}

	file, header, err := r.FormFile("videoFile")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "UPLOAD_ERROR", "No file uploaded", err)
		return
	}
	defer file.Close()

	if err := h.checkFileType(header.Filename, header.Header.Get("Content-Type")); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "UPLOAD_ERROR", "Video files only (mp4, mov, avi, mkv)", err)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title is required", nil)
		return
	}

	var categories []string
	if raw := r.FormValue("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}

	key, err := h.objects.Put(r.Context(), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("store_error").Inc()
		respondError(w, http.StatusInternalServerError, "UPLOAD_ERROR", "Could not store the video file", err)
		return
	}

	now := time.Now().UTC()
	video := &models.Video{
		ID:          uuid.NewString(),
		OwnerID:     claims.UserID,
		Title:       title,
		Description: r.FormValue("description"),
		Categories:  categories,
		StorageRef:  key,
		SizeBytes:   header.Size,
		Processing:  models.ProcessingPending,
		Sensitivity: models.SensitivityPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.videos.Create(r.Context(), video); err != nil {
		metrics.UploadsTotal.WithLabelValues("store_error").Inc()
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not create the video record", err)
		return
	}

	// Fire and forget: the pipeline owns its own error boundary, the
	// upload response never waits on moderation.
	if err := pipeline.PublishUploaded(h.publisher, video.ID); err != nil {
		logging.Error().Err(err).Str("video_id", video.ID).Msg("Could not queue moderation run")
	}

	h.cache.Clear()
	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	metrics.UploadBytes.Observe(float64(header.Size))

	logging.Info().
		Str("video_id", video.ID).
		Str("owner_id", claims.UserID).
		Int64("size_bytes", header.Size).
		Msg("Video uploaded")
	respondSuccess(w, http.StatusCreated, video, 0)
}

var allowedVideoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".avi": true,
	".mkv": true,
}

func (h *Handler) checkFileType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := allowedVideoExtensions
	if len(h.config.Upload.AllowedExtensions) > 0 {
		allowed = make(map[string]bool, len(h.config.Upload.AllowedExtensions))
		for _, e := range h.config.Upload.AllowedExtensions {
			allowed["."+strings.TrimPrefix(strings.ToLower(e), ".")] = true
		}
	}
	if !allowed[ext] {
		return fmt.Errorf("extension %q not allowed", ext)
	}
	if !strings.HasPrefix(contentType, "video/") {
		return fmt.Errorf("content type %q is not video", contentType)
	}
	return nil
}

// ListVideos returns the page of videos visible to the caller: admins see
// everything, editors their own uploads, viewers their assignments.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	claims := auth.GetClaims(r.Context())

	filter := models.VideoFilter{
		Keyword:     r.URL.Query().Get("keyword"),
		Sensitivity: models.SensitivityStatus(r.URL.Query().Get("status")),
		Category:    r.URL.Query().Get("category"),
	}
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleEditor:
		filter.OwnerID = claims.UserID
	default:
		filter.AssignedTo = claims.UserID
	}

	page := getIntParam(r, "pageNumber", 1)
	if page < 1 {
		page = 1
	}
	pageSize := h.config.API.PageSize

	videos, total, err := h.videos.List(r.Context(), filter, page, pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not list videos", err)
		return
	}

	pages := (total + pageSize - 1) / pageSize
	respondSuccess(w, http.StatusOK, models.VideoListPage{
		Videos: videos,
		Page:   page,
		Pages:  pages,
		Total:  total,
	}, time.Since(start))
}

// GetVideo returns one video record.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	video, err := h.videos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Video not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not load video", err)
		return
	}
	respondSuccess(w, http.StatusOK, video, time.Since(start))
}

// DeleteVideo removes a record and its stored payload. Owner or admin.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	id := chi.URLParam(r, "id")

	video, err := h.videos.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Video not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not load video", err)
		return
	}

	if video.OwnerID != claims.UserID && claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "Not authorized to delete this video", nil)
		return
	}

	if err := h.videos.Delete(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not delete video", err)
		return
	}

	// Payload removal is best effort: an orphaned blob costs storage, a
	// failed API call should not resurrect the record.
	if key, err := objectstore.ParseReference(video.StorageRef); err == nil {
		if err := h.objects.Delete(r.Context(), key); err != nil {
			logging.Warn().Err(err).Str("video_id", id).Str("key", key).Msg("Could not delete stored payload")
		}
	}

	h.cache.Clear()
	logging.Info().Str("video_id", id).Str("deleted_by", claims.UserID).Msg("Video deleted")
	respondSuccess(w, http.StatusOK, map[string]string{"message": "Video removed"}, 0)
}

type assignRequest struct {
	ViewerIDs []string `json:"viewerIds" validate:"required"`
}

// AssignViewers replaces the viewer assignment of a video. Admin only.
func (h *Handler) AssignViewers(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	video, err := h.videos.Update(r.Context(), id, models.VideoUpdate{AssignedViewers: &req.ViewerIDs})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Video not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not assign viewers", err)
		return
	}

	h.cache.Clear()
	logging.Info().Str("video_id", id).Int("viewers", len(req.ViewerIDs)).Msg("Viewers assigned")
	respondSuccess(w, http.StatusOK, video, 0)
}

type recoverResponse struct {
	Recovered int             `json:"recovered"`
	Videos    []*models.Video `json:"videos"`
}

// RecoverVideos force-completes records stuck in a non-terminal state so
// their content becomes reachable again. Admin only.
func (h *Handler) RecoverVideos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	recovered, err := h.recovery.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Recovery sweep failed", err)
		return
	}
	respondSuccess(w, http.StatusOK, recoverResponse{
		Recovered: len(recovered),
		Videos:    recovered,
	}, time.Since(start))
}
