// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package pipeline

// TopicVideoUploaded carries one message per accepted upload. Each message
// triggers exactly one moderation run for the referenced video.
const TopicVideoUploaded = "video.uploaded"

// UploadedEvent is the payload of TopicVideoUploaded messages.
type UploadedEvent struct {
	VideoID string `json:"videoId"`
}

// Event is the payload of video_processing websocket messages delivered to
// the owner of the video. Progress is a pointer so terminal failure events
// can omit the field entirely.
type Event struct {
	VideoID     string `json:"videoId"`
	Status      string `json:"status"`
	Progress    *int   `json:"progress,omitempty"`
	Msg         string `json:"msg"`
	Sensitivity string `json:"sensitivity,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Event statuses as they appear on the wire.
const (
	EventStatusProcessing = "processing"
	EventStatusCompleted  = "completed"
	EventStatusFailed     = "failed"
)

// Notifier delivers events to every live connection of one user. Delivery
// is best effort: a user with no open connections receives nothing.
type Notifier interface {
	EmitToUser(userID, messageType string, data interface{})
}

// Flusher invalidates cached API responses after a record mutation.
type Flusher interface {
	Clear()
}

func progressOf(n int) *int { return &n }
