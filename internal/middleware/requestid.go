// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pulsedev/pulsestream/internal/logging"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID tags every request with an ID, echoed in the X-Request-ID
// response header and threaded through the context so log lines from the
// same request correlate.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An upstream proxy may have assigned one already.
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		ctx = logging.ContextWithRequestID(ctx, id)
		ctx = logging.ContextWithNewCorrelationID(ctx)

		next(w, r.WithContext(ctx))
	}
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
