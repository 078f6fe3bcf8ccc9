// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only for
// error responses.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability. QueryTimeMS is the
// store query time in milliseconds (0 when the response came from the
// response cache, in which case Cached is true).
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is a structured error payload.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, AUTHORIZATION_ERROR,
// NOT_FOUND, UPLOAD_ERROR, STORE_ERROR, STREAM_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// VideoListPage is the paginated listing payload for GET /videos.
type VideoListPage struct {
	Videos []*Video `json:"videos"`
	Page   int      `json:"page"`
	Pages  int      `json:"pages"`
	Total  int      `json:"total"`
}

// ReasonCount is one flagged-reason aggregate for the analytics chart.
type ReasonCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// VideoAnalytics aggregates moderation outcomes across all videos.
type VideoAnalytics struct {
	TotalVideos   int           `json:"totalVideos"`
	FlaggedVideos int           `json:"flaggedVideos"`
	SafeVideos    int           `json:"safeVideos"`
	ReasonData    []ReasonCount `json:"reasonData"`
}
