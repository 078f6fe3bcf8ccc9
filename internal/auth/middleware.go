// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/models"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// Middleware provides JWT authentication middleware.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// respondAuthError writes the standard error envelope. Auth failures use
// the same response shape as the handlers so clients parse one format.
func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to write auth error response")
	}
}

// Authenticate is middleware that enforces JWT authentication. The
// token is read from the Authorization header, the token cookie, or
// the token query parameter (the browser WebSocket API cannot set
// headers, so the upgrade request carries its token in the query).
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := m.extractToken(r)
		if err != nil {
			respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Error().Err(err).Msg("Token validation failed")
			respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized: invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// extractToken pulls the JWT from header, cookie or query parameter.
func (m *Middleware) extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", fmt.Errorf("unauthorized: invalid authorization header")
		}
		return parts[1], nil
	}

	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value, nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("unauthorized: missing token")
}

// RequireRole is middleware that enforces one of the given roles.
// Admins always pass.
func (m *Middleware) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil {
			respondAuthError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden: invalid claims")
			return
		}

		if claims.Role == "admin" {
			next(w, r)
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next(w, r)
				return
			}
		}

		respondAuthError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden: insufficient permissions")
	})
}

// GetClaims retrieves the Claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}
