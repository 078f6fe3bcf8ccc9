// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pulsedev/pulsestream/internal/models"
)

// VideoAnalytics aggregates moderation outcomes for the admin dashboard:
// totals, the flagged/safe split, and flagged-reason counts produced by
// splitting each flaggedReason on commas.
func (h *Handler) VideoAnalytics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// The record population fits a single scan at this scale; the response
	// cache absorbs repeat dashboard loads.
	all, total, err := h.videos.List(r.Context(), models.VideoFilter{}, 1, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not compute analytics", err)
		return
	}

	flagged := 0
	reasons := make(map[string]int)
	for _, v := range all {
		if v.Sensitivity != models.SensitivityFlagged {
			continue
		}
		flagged++
		for _, part := range strings.Split(v.FlaggedReason, ",") {
			part = strings.TrimSpace(part)
			if countableReason(part) {
				reasons[part]++
			}
		}
	}

	reasonData := make([]models.ReasonCount, 0, len(reasons))
	for name, count := range reasons {
		reasonData = append(reasonData, models.ReasonCount{Name: name, Count: count})
	}
	sort.Slice(reasonData, func(i, j int) bool {
		if reasonData[i].Count != reasonData[j].Count {
			return reasonData[i].Count > reasonData[j].Count
		}
		return reasonData[i].Name < reasonData[j].Name
	})

	respondSuccess(w, http.StatusOK, models.VideoAnalytics{
		TotalVideos:   total,
		FlaggedVideos: flagged,
		SafeVideos:    total - flagged,
		ReasonData:    reasonData,
	}, time.Since(start))
}

// countableReason filters out empty fragments from trailing commas and
// fragments with no letters at all (timestamps, stray punctuation).
func countableReason(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
