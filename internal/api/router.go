// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/cache"
	"github.com/pulsedev/pulsestream/internal/middleware"
	"github.com/pulsedev/pulsestream/internal/models"
)

// Router assembles the chi routing tree.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	chiMW   *ChiMiddleware
	cache   *cache.Cache
}

// NewRouter creates a router from its middleware and handler dependencies.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMW *ChiMiddleware, responseCache *cache.Cache) *Router {
	return &Router{
		handler: handler,
		auth:    authMW,
		chiMW:   chiMW,
		cache:   responseCache,
	}
}

// Setup builds the HTTP handler tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global stack, applied to every route in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMW.CORS())

	r.Get("/health", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Route("/auth", func(r chi.Router) {
			r.With(rt.chiMW.RateLimitLogin()).Post("/login", rt.handler.Login)

			r.Group(func(r chi.Router) {
				r.Use(rt.chiMW.RateLimit())
				r.Use(chiMiddleware(rt.auth.Authenticate))
				r.Post("/register", rt.auth.RequireRole(rt.handler.Register, models.RoleAdmin))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(rt.chiMW.RateLimit())
			r.Use(chiMiddleware(rt.auth.Authenticate))
			r.Get("/viewers", rt.auth.RequireRole(rt.handler.Viewers, models.RoleAdmin))
		})

		r.Route("/videos", func(r chi.Router) {
			r.Use(chiMiddleware(rt.auth.Authenticate))

			r.With(rt.chiMW.RateLimitUpload()).
				Post("/upload", rt.auth.RequireRole(rt.handler.Upload, models.RoleAdmin, models.RoleEditor))

			// Read paths go through the response cache. Keys include the
			// full request URI, so pagination and filters stay distinct.
			r.Group(func(r chi.Router) {
				r.Use(rt.chiMW.RateLimit())
				r.Use(chiMiddleware(cache.Middleware(rt.cache)))
				r.Get("/", rt.handler.ListVideos)
				r.Get("/analytics", rt.auth.RequireRole(rt.handler.VideoAnalytics, models.RoleAdmin))
				r.Get("/{id}", rt.handler.GetVideo)
			})

			r.Get("/{id}/stream", rt.handler.StreamVideo)

			r.Group(func(r chi.Router) {
				r.Use(rt.chiMW.RateLimit())
				r.Delete("/{id}", rt.auth.RequireRole(rt.handler.DeleteVideo, models.RoleAdmin, models.RoleEditor))
				r.Put("/{id}/assign", rt.auth.RequireRole(rt.handler.AssignViewers, models.RoleAdmin))
				r.Post("/recover", rt.auth.RequireRole(rt.handler.RecoverVideos, models.RoleAdmin))
			})
		})

		r.With(chiMiddleware(rt.auth.Authenticate)).Get("/ws", rt.handler.WebSocket)
	})

	return r
}
