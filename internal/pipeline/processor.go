// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package pipeline runs the asynchronous content moderation flow: one run
// per accepted upload, from storage-reference extraction through job
// submission, status polling, and the final verdict write.
//
// The pipeline prefers availability over strict gating. Any fault after the
// record has been fetched resolves the record to completed/flagged with a
// diagnostic reason, so the video stays reachable behind a warning instead
// of disappearing into a stuck pending state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/moderation"
	"github.com/pulsedev/pulsestream/internal/objectstore"
	"github.com/pulsedev/pulsestream/internal/store"
	"github.com/pulsedev/pulsestream/internal/websocket"
)

// Placeholder thumbnails until real frame extraction lands.
const (
	thumbnailPreview = "https://via.placeholder.com/640x360.png?text=Video+Preview"
	thumbnailError   = "https://via.placeholder.com/640x360.png?text=Processing+Error"
)

// errPollTimeout marks a run that exhausted its polling budget without the
// moderation service reaching a terminal status.
var errPollTimeout = errors.New("moderation timed out")

// ProcessorConfig tunes one Processor. Zero PollTimeout polls until the
// moderation service reports a terminal status.
type ProcessorConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Processor executes moderation runs. Safe for concurrent use; concurrent
// runs for the same video ID are collapsed to one.
type Processor struct {
	videos   store.VideoStore
	mod      moderation.Client
	notifier Notifier
	cache    Flusher
	cfg      ProcessorConfig

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewProcessor wires a Processor. notifier and cache may not be nil; pass
// the hub and the response cache, or no-op fakes in tests.
func NewProcessor(videos store.VideoStore, mod moderation.Client, notifier Notifier, cache Flusher, cfg ProcessorConfig) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Processor{
		videos:   videos,
		mod:      mod,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
}

// Process runs the full moderation flow for one video. A run already in
// flight for the same ID makes this call a no-op. A video that no longer
// exists is also a no-op, both up front and mid-flight: deletion during a
// run silently abandons it.
func (p *Processor) Process(ctx context.Context, videoID string) {
	if !p.acquire(videoID) {
		logging.Debug().Str("video_id", videoID).Msg("Moderation run already in flight, skipping")
		return
	}
	defer p.release(videoID)

	metrics.PipelineActiveJobs.Inc()
	defer metrics.PipelineActiveJobs.Dec()

	start := time.Now()
	outcome, polls := p.run(ctx, videoID)
	metrics.RecordPipelineRun(outcome, time.Since(start), polls)
}

func (p *Processor) acquire(videoID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inflight[videoID]; ok {
		return false
	}
	p.inflight[videoID] = struct{}{}
	return true
}

func (p *Processor) release(videoID string) {
	p.mu.Lock()
	delete(p.inflight, videoID)
	p.mu.Unlock()
}

// run returns the outcome label and the number of status polls performed.
func (p *Processor) run(ctx context.Context, videoID string) (string, int) {
	log := logging.With().Str("video_id", videoID).Logger()
	log.Info().Msg("Starting moderation run")

	video, err := p.videos.GetByID(ctx, videoID)
	if err != nil {
		// Record gone (or never existed): nothing to resolve.
		log.Debug().Err(err).Msg("Video not found, abandoning run")
		return "abandoned", 0
	}

	key, err := objectstore.ParseReference(video.StorageRef)
	if err != nil {
		// Without a remote object there is no job to submit. This is the
		// one fault that resolves to failed rather than the fail-safe
		// verdict: the safety axis was never evaluated.
		log.Error().Err(err).Str("storage_ref", video.StorageRef).Msg("Cannot extract object key for moderation")
		p.markFailed(ctx, video, "Video file reference is invalid.")
		return "failed", 0
	}

	p.emit(video, Event{
		VideoID:  videoID,
		Status:   EventStatusProcessing,
		Progress: progressOf(10),
		Msg:      "Sending to AI for analysis...",
	})

	jobID, err := p.mod.StartAnalysis(ctx, key)
	if err != nil {
		return p.failSafe(ctx, video, err), 0
	}
	log.Info().Str("job_id", jobID).Msg("Moderation job started")

	p.emit(video, Event{
		VideoID:  videoID,
		Status:   EventStatusProcessing,
		Progress: progressOf(30),
		Msg:      "Analyzing content...",
	})

	result, polls, err := p.poll(ctx, jobID, video)
	if err != nil {
		return p.failSafe(ctx, video, err), polls
	}

	if result.Status == moderation.JobFailed {
		log.Error().Str("job_id", jobID).Str("detail", result.StatusMessage).Msg("Moderation job failed")
		p.markFailed(ctx, video, "AI Analysis Failed.")
		return "failed", polls
	}

	p.emit(video, Event{
		VideoID:  videoID,
		Status:   EventStatusProcessing,
		Progress: progressOf(90),
		Msg:      "Finalizing results...",
	})

	outcome, err := p.resolve(ctx, video, result.Labels)
	if err != nil {
		return p.failSafe(ctx, video, err), polls
	}
	log.Info().Str("job_id", jobID).Str("outcome", outcome).Int("polls", polls).Msg("Moderation run complete")
	return outcome, polls
}

// poll waits out the job with the configured interval until the moderation
// service reports a terminal status, the context is canceled, or the
// optional wall-clock budget runs out.
func (p *Processor) poll(ctx context.Context, jobID string, video *models.Video) (*moderation.JobResult, int, error) {
	if p.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.cfg.PollTimeout, errPollTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			return nil, polls, context.Cause(ctx)
		case <-ticker.C:
		}

		result, err := p.mod.GetAnalysis(ctx, jobID)
		if err != nil {
			return nil, polls, err
		}
		polls++

		if result.Status.Terminal() {
			return result, polls, nil
		}

		p.emit(video, Event{
			VideoID:  video.ID,
			Status:   EventStatusProcessing,
			Progress: progressOf(50),
			Msg:      "AI Analysis in progress...",
		})
	}
}

// resolve writes the verdict for a succeeded job: no labels means safe,
// any label means flagged with the label names as the reason.
func (p *Processor) resolve(ctx context.Context, video *models.Video, labels []moderation.Label) (string, error) {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	reasons := strings.Join(names, ", ")

	sensitivity := models.SensitivitySafe
	if len(labels) > 0 {
		sensitivity = models.SensitivityFlagged
	}

	update := models.VideoUpdate{
		Processing:    ptr(models.ProcessingCompleted),
		Sensitivity:   &sensitivity,
		FlaggedReason: &reasons,
		ThumbnailPath: ptr(thumbnailPreview),
	}
	updated, err := p.videos.Update(ctx, video.ID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "abandoned", nil
		}
		return "", err
	}
	p.cache.Clear()

	msg := "Processing Complete. Content is Safe."
	if sensitivity == models.SensitivityFlagged {
		msg = fmt.Sprintf("Caution: Content Flagged (%d issues detected: %s)", len(labels), reasons)
	}
	p.emit(updated, Event{
		VideoID:     updated.ID,
		Status:      EventStatusCompleted,
		Progress:    progressOf(100),
		Msg:         msg,
		Sensitivity: string(updated.Sensitivity),
		Reason:      reasons,
	})

	if sensitivity == models.SensitivityFlagged {
		return "flagged", nil
	}
	return "safe", nil
}

// failSafe resolves a faulted run so the video stays viewable: completed on
// the lifecycle axis, flagged on the safety axis, with the fault recorded
// as the reason. A record deleted mid-flight makes this a silent no-op.
func (p *Processor) failSafe(ctx context.Context, video *models.Video, cause error) string {
	logging.Error().Err(cause).Str("video_id", video.ID).Msg("Moderation run faulted, applying fail-safe verdict")

	reason := fmt.Sprintf("AI Processing Error: %s", cause.Error())
	update := models.VideoUpdate{
		Processing:    ptr(models.ProcessingCompleted),
		Sensitivity:   ptr(models.SensitivityFlagged),
		FlaggedReason: &reason,
	}
	if video.ThumbnailPath == "" {
		update.ThumbnailPath = ptr(thumbnailError)
	}

	updated, err := p.videos.Update(ctx, video.ID, update)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Error().Err(err).Str("video_id", video.ID).Msg("Fail-safe update did not apply")
		}
		return "abandoned"
	}
	p.cache.Clear()

	p.emit(updated, Event{
		VideoID:     updated.ID,
		Status:      EventStatusCompleted,
		Msg:         fmt.Sprintf("AI Analysis Failed (Video is viewable): %s", cause.Error()),
		Sensitivity: string(models.SensitivityFlagged),
		Reason:      reason,
	})

	if errors.Is(cause, errPollTimeout) {
		return "timeout"
	}
	return "failsafe"
}

// markFailed resolves the lifecycle axis to failed without touching the
// safety axis.
func (p *Processor) markFailed(ctx context.Context, video *models.Video, msg string) {
	update := models.VideoUpdate{Processing: ptr(models.ProcessingFailed)}
	if _, err := p.videos.Update(ctx, video.ID, update); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Error().Err(err).Str("video_id", video.ID).Msg("Failed-state update did not apply")
		}
		return
	}
	p.cache.Clear()

	p.emit(video, Event{
		VideoID: video.ID,
		Status:  EventStatusFailed,
		Msg:     msg,
	})
}

func (p *Processor) emit(video *models.Video, event Event) {
	p.notifier.EmitToUser(video.OwnerID, websocket.MessageTypeVideoProcessing, event)
}

func ptr[T any](v T) *T { return &v }
