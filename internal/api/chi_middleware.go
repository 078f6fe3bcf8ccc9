// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/pulsedev/pulsestream/internal/config"
	"github.com/pulsedev/pulsestream/internal/metrics"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so both styles compose in r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// ChiMiddleware builds the Chi-compatible middleware stack from the
// security configuration.
type ChiMiddleware struct {
	cfg  *config.SecurityConfig
	cors func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory. Empty CORS origins
// deny cross-origin requests; configure security.cors_origins explicitly.
func NewChiMiddleware(cfg *config.SecurityConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	return &ChiMiddleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the go-chi/cors handler. Applied globally so OPTIONS
// preflight requests are answered on every route.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the general per-IP rate limiter for API endpoints.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return passthrough
	}
	return httprate.Limit(
		m.cfg.RateLimitReqs,
		m.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// RateLimitLogin returns the strict limiter for credential endpoints:
// 5 attempts per 5 minutes per IP.
func (m *ChiMiddleware) RateLimitLogin() func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return passthrough
	}
	return httprate.Limit(
		5,
		5*time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// RateLimitUpload returns the limiter for multipart uploads, which are
// expensive enough to deserve their own budget.
func (m *ChiMiddleware) RateLimitUpload() func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return passthrough
	}
	return httprate.Limit(
		30,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
	respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down", nil)
}
