// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/store"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  sessionUser  `json:"user"`
}

// sessionUser is the authenticated self-view: public fields plus the role
// the frontend needs for route gating.
type sessionUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func sessionUserOf(u *models.User) sessionUser {
	return sessionUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
	}
}

// Login authenticates a user and issues a JWT. The token is returned in
// the body and set as an HTTP-only cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Login failed", err)
			return
		}
		// Same response as a wrong password: no username probing.
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.Warn().Str("username", req.Username).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.config.Security.SessionTimeout),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})

	logging.Info().Str("username", user.Username).Str("role", user.Role).Msg("User logged in")
	respondSuccess(w, http.StatusOK, loginResponse{Token: token, User: sessionUserOf(user)}, 0)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,role"`
}

// Register creates a user account. Admin only.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) || !validateBody(w, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not create user", err)
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondError(w, http.StatusConflict, "CONFLICT", "Username already taken", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not create user", err)
		return
	}

	logging.Info().Str("username", user.Username).Str("role", user.Role).Msg("User registered")
	respondSuccess(w, http.StatusCreated, sessionUserOf(user), 0)
}

// Viewers lists viewer accounts for the assignment picker. Admin only.
func (h *Handler) Viewers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	users, err := h.users.ListByRole(r.Context(), models.RoleViewer)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Could not list viewers", err)
		return
	}

	viewers := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		viewers = append(viewers, u.Public())
	}
	respondSuccess(w, http.StatusOK, viewers, time.Since(start))
}
