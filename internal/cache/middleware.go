// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package cache

import (
	"bytes"
	"net/http"
)

// cachedResponse holds the full serialized HTTP payload for replay.
type cachedResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// recordingResponseWriter buffers the response while writing it through,
// so a successful response can be stored after the handler returns.
type recordingResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingResponseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Middleware returns a GET-only read-through caching middleware.
//
// The cache key is the request method plus the exact request URI (path and
// query string, order-sensitive), so two requests differing only in query
// parameter order occupy separate entries. On a hit the stored payload is
// replayed verbatim with an X-Cache: HIT header; on a miss the response is
// recorded and stored if the handler returned 200 OK.
//
// Mutating handlers and the processing pipeline invalidate by calling
// Clear on the underlying cache.
func Middleware(c *Cache) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next(w, r)
				return
			}

			key := r.Method + ":" + r.URL.RequestURI()

			if cached, ok := c.Get(key); ok {
				if resp, ok := cached.(*cachedResponse); ok {
					if resp.ContentType != "" {
						w.Header().Set("Content-Type", resp.ContentType)
					}
					w.Header().Set("X-Cache", "HIT")
					w.WriteHeader(resp.Status)
					_, _ = w.Write(resp.Body)
					return
				}
			}

			rw := &recordingResponseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}
			w.Header().Set("X-Cache", "MISS")
			next(rw, r)

			// Only successful responses are worth replaying
			if rw.status == http.StatusOK {
				c.Set(key, &cachedResponse{
					Status:      rw.status,
					ContentType: rw.Header().Get("Content-Type"),
					Body:        append([]byte(nil), rw.body.Bytes()...),
				})
			}
		}
	}
}
