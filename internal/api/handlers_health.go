// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version"`
	WSClients     int     `json:"ws_clients"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
}

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Health reports liveness plus a few cheap runtime numbers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Version:       Version,
		WSClients:     h.hub.GetClientCount(),
		CacheHitRate:  h.cache.HitRate(),
	}, 0)
}
