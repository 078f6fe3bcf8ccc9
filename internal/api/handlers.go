// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package api provides the HTTP surface: chi routing, request handlers,
// and the standard response envelope.
//
// Handler methods are split across files:
//   - handlers_auth.go: login, registration, viewer listing
//   - handlers_videos.go: upload, listing, detail, delete, assignment,
//     recovery
//   - handlers_stream.go: the streaming responder
//   - handlers_analytics.go: moderation aggregates
//   - handlers_health.go: health and readiness
package api

import (
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"

	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/cache"
	"github.com/pulsedev/pulsestream/internal/config"
	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/objectstore"
	"github.com/pulsedev/pulsestream/internal/pipeline"
	"github.com/pulsedev/pulsestream/internal/store"
	ws "github.com/pulsedev/pulsestream/internal/websocket"
)

// Handler carries the dependencies of every HTTP endpoint.
type Handler struct {
	config     *config.Config
	videos     store.VideoStore
	users      store.UserStore
	objects    objectstore.ObjectStore
	cache      *cache.Cache
	hub        *ws.Hub
	jwtManager *auth.JWTManager
	publisher  message.Publisher
	recovery   *pipeline.Recovery
	startTime  time.Time
}

// NewHandler wires an API handler with all required dependencies.
func NewHandler(
	cfg *config.Config,
	videos store.VideoStore,
	users store.UserStore,
	objects objectstore.ObjectStore,
	responseCache *cache.Cache,
	hub *ws.Hub,
	jwtManager *auth.JWTManager,
	publisher message.Publisher,
	recovery *pipeline.Recovery,
) *Handler {
	return &Handler{
		config:     cfg,
		videos:     videos,
		users:      users,
		objects:    objects,
		cache:      responseCache,
		hub:        hub,
		jwtManager: jwtManager,
		publisher:  publisher,
		recovery:   recovery,
		startTime:  time.Now(),
	}
}

// WebSocket upgrades the connection and joins the authenticated user's
// room. Authentication runs in the route middleware; the token rides the
// "token" query parameter because browsers cannot set headers on upgrade
// requests.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Authentication required", nil)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkWSOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID)
	h.hub.Register <- client
	client.Start()
}

func (h *Handler) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
