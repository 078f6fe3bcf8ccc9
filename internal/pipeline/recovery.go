// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package pipeline

import (
	"context"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/store"
)

// RecoveryReason is the diagnostic written to records force-completed by
// the recovery sweep.
const RecoveryReason = "Force completed by recovery"

// Recovery force-resolves records stranded in a non-terminal processing
// state, typically after a crash dropped their queued pipeline runs. The
// records become viewable immediately, flagged so a reviewer can see they
// skipped moderation.
type Recovery struct {
	videos store.VideoStore
	cache  Flusher
}

// NewRecovery wires a Recovery sweep.
func NewRecovery(videos store.VideoStore, cache Flusher) *Recovery {
	return &Recovery{videos: videos, cache: cache}
}

// Run applies the fail-safe verdict to every stuck record in one
// transaction and returns the records it changed.
func (r *Recovery) Run(ctx context.Context) ([]*models.Video, error) {
	filter := models.VideoFilter{
		ProcessingIn: []models.ProcessingStatus{
			models.ProcessingPending,
			models.ProcessingActive,
		},
	}
	update := models.VideoUpdate{
		Processing:    ptr(models.ProcessingCompleted),
		Sensitivity:   ptr(models.SensitivityFlagged),
		FlaggedReason: ptr(RecoveryReason),
	}

	recovered, err := r.videos.UpdateWhere(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if len(recovered) > 0 {
		r.cache.Clear()
		metrics.RecoveredVideosTotal.Add(float64(len(recovered)))
	}

	logging.Info().Int("recovered", len(recovered)).Msg("Recovery sweep complete")
	return recovered, nil
}
