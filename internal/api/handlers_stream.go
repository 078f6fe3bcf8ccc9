// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/objectstore"
	"github.com/pulsedev/pulsestream/internal/store"
)

// streamChunkSize bounds a ranged response when the client sends an
// open-ended range.
const streamChunkSize = 1_000_000

// StreamVideo resolves the storage reference and serves the payload.
// Remote references redirect to a short-lived signed URL, falling back to
// the raw reference when signing fails. Legacy local paths are served
// directly with single-range partial content support.
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	video, err := h.videos.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Video not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not load video", err)
		return
	}

	key, err := objectstore.ParseReference(video.StorageRef)
	if err == nil {
		signed, err := h.objects.SignedGetURL(r.Context(), key)
		if err != nil {
			logging.Error().Err(err).Str("video_id", video.ID).Msg("Signing failed, redirecting to raw reference")
			http.Redirect(w, r, video.StorageRef, http.StatusFound)
			return
		}
		http.Redirect(w, r, signed, http.StatusFound)
		return
	}

	h.streamLocalFile(w, r, video.StorageRef)
}

// streamLocalFile serves a file from disk: the whole payload without a
// Range header, else a single bounded slice as 206 partial content.
func (h *Handler) streamLocalFile(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "STREAM_ERROR", "File not found locally", err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STREAM_ERROR", "Could not stat file", err)
		return
	}
	size := info.Size()

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			logging.Debug().Err(err).Msg("Stream interrupted")
		}
		return
	}

	start, ok := parseRangeStart(rangeHeader)
	if !ok || start >= size {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		respondError(w, http.StatusRequestedRangeNotSatisfiable, "STREAM_ERROR", "Invalid range", nil)
		return
	}

	end := start + streamChunkSize
	if end > size-1 {
		end = size - 1
	}
	length := end - start + 1

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		logging.Error().Err(err).Msg("Seek failed mid-stream")
		return
	}
	if _, err := io.CopyN(w, file, length); err != nil {
		logging.Debug().Err(err).Msg("Stream interrupted")
	}
}

// parseRangeStart extracts the start offset from a single-range header of
// the form "bytes=N-" or "bytes=N-M". Only the start is honored: the
// response is always capped at the fixed chunk size.
func parseRangeStart(header string) (int64, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, false
	}
	startPart, _, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, false
	}
	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}
	return start, true
}
