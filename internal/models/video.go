// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package models

import (
	"strings"
	"time"
)

// ProcessingStatus is the pipeline lifecycle axis of a video record.
type ProcessingStatus string

// Processing lifecycle states. The transition is one-directional:
// pending -> (processing, transient) -> completed | failed. Only pending,
// completed, and failed are ever persisted; processing exists as a
// progress-event status while a pipeline run is active.
const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingActive    ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Terminal reports whether the status is an end state the pipeline never
// revisits.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

// SensitivityStatus is the moderation-verdict axis, independent of the
// processing lifecycle.
type SensitivityStatus string

const (
	SensitivityPending SensitivityStatus = "pending"
	SensitivitySafe    SensitivityStatus = "safe"
	SensitivityFlagged SensitivityStatus = "flagged"
)

// Video is one uploaded media unit and its metadata/status record.
//
// Invariants maintained by the processing pipeline:
//   - ProcessingStatus == completed implies SensitivityStatus is safe or
//     flagged, never pending (the fail-safe path resolves the safety axis).
//   - ProcessingStatus == failed leaves SensitivityStatus untouched.
type Video struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	AssignedViewers []string          `json:"assignedViewers"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Categories      []string          `json:"categories,omitempty"`
	StorageRef      string            `json:"storageRef"`
	ThumbnailPath   string            `json:"thumbnailPath,omitempty"`
	SizeBytes       int64             `json:"sizeBytes,omitempty"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
	Processing      ProcessingStatus  `json:"processingStatus"`
	Sensitivity     SensitivityStatus `json:"sensitivityStatus"`
	FlaggedReason   string            `json:"flaggedReason,omitempty"`
	Views           int64             `json:"views"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// IsAssignedTo reports whether the given user has been granted view access.
func (v *Video) IsAssignedTo(userID string) bool {
	for _, id := range v.AssignedViewers {
		if id == userID {
			return true
		}
	}
	return false
}

// VideoUpdate describes a partial update applied atomically to a video
// record. Nil fields are left unchanged.
type VideoUpdate struct {
	Processing      *ProcessingStatus
	Sensitivity     *SensitivityStatus
	FlaggedReason   *string
	ThumbnailPath   *string
	AssignedViewers *[]string
	Views           *int64
}

// Apply patches the video in place with every set field.
func (u *VideoUpdate) Apply(v *Video) {
	if u.Processing != nil {
		v.Processing = *u.Processing
	}
	if u.Sensitivity != nil {
		v.Sensitivity = *u.Sensitivity
	}
	if u.FlaggedReason != nil {
		v.FlaggedReason = *u.FlaggedReason
	}
	if u.ThumbnailPath != nil {
		v.ThumbnailPath = *u.ThumbnailPath
	}
	if u.AssignedViewers != nil {
		v.AssignedViewers = *u.AssignedViewers
	}
	if u.Views != nil {
		v.Views = *u.Views
	}
}

// VideoFilter selects video records for listing and bulk updates.
// Zero values mean "no constraint on this field".
type VideoFilter struct {
	// OwnerID restricts results to one uploader (editor scoping).
	OwnerID string

	// AssignedTo restricts results to videos a viewer was granted (viewer
	// scoping).
	AssignedTo string

	// Keyword is a case-insensitive substring match on the title.
	Keyword string

	// Sensitivity filters on the moderation verdict axis.
	Sensitivity SensitivityStatus

	// Processing filters on the pipeline lifecycle axis. ProcessingIn takes
	// precedence when non-empty.
	Processing   ProcessingStatus
	ProcessingIn []ProcessingStatus

	// Category requires the category to be present on the record.
	Category string
}

// Matches reports whether the video satisfies every set constraint.
func (f *VideoFilter) Matches(v *Video) bool {
	if f.OwnerID != "" && v.OwnerID != f.OwnerID {
		return false
	}
	if f.AssignedTo != "" && !v.IsAssignedTo(f.AssignedTo) {
		return false
	}
	if f.Keyword != "" && !strings.Contains(strings.ToLower(v.Title), strings.ToLower(f.Keyword)) {
		return false
	}
	if f.Sensitivity != "" && v.Sensitivity != f.Sensitivity {
		return false
	}
	if len(f.ProcessingIn) > 0 {
		found := false
		for _, s := range f.ProcessingIn {
			if v.Processing == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if f.Processing != "" && v.Processing != f.Processing {
		return false
	}
	if f.Category != "" {
		found := false
		for _, c := range v.Categories {
			if c == f.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
