// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/moderation"
	"github.com/pulsedev/pulsestream/internal/store"
)

// fakeModClient scripts the moderation provider. getResults is consumed
// one entry per poll; the last entry repeats once the script runs out.
type fakeModClient struct {
	mu         sync.Mutex
	startErr   error
	getErr     error
	getResults []*moderation.JobResult
	startCalls int
	getCalls   int

	// onStart, when set, runs inside StartAnalysis before returning.
	onStart func()
}

func (f *fakeModClient) StartAnalysis(ctx context.Context, objectKey string) (string, error) {
	f.mu.Lock()
	f.startCalls++
	f.mu.Unlock()
	if f.onStart != nil {
		f.onStart()
	}
	if f.startErr != nil {
		return "", f.startErr
	}
	return "job-1", nil
}

func (f *fakeModClient) GetAnalysis(ctx context.Context, jobID string) (*moderation.JobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	idx := f.getCalls - 1
	if idx >= len(f.getResults) {
		idx = len(f.getResults) - 1
	}
	return f.getResults[idx], nil
}

func (f *fakeModClient) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

type captured struct {
	userID string
	event  Event
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []captured
}

func (f *fakeNotifier) EmitToUser(userID, messageType string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, captured{userID: userID, event: data.(Event)})
}

func (f *fakeNotifier) all() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captured(nil), f.events...)
}

type fakeFlusher struct {
	mu     sync.Mutex
	clears int
}

func (f *fakeFlusher) Clear() {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
}

func (f *fakeFlusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func newTestVideoStore(t *testing.T) store.VideoStore {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.NewBadgerVideoStore(db)
}

func seedVideo(t *testing.T, videos store.VideoStore, id, owner, ref string) *models.Video {
	t.Helper()
	v := &models.Video{
		ID:          id,
		OwnerID:     owner,
		Title:       "Video " + id,
		StorageRef:  ref,
		Processing:  models.ProcessingPending,
		Sensitivity: models.SensitivityPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, videos.Create(context.Background(), v))
	return v
}

func fastConfig() ProcessorConfig {
	return ProcessorConfig{PollInterval: time.Millisecond}
}

func succeededWith(labels ...moderation.Label) []*moderation.JobResult {
	return []*moderation.JobResult{
		{Status: moderation.JobInProgress},
		{Status: moderation.JobSucceeded, Labels: labels},
	}
}

func TestProcessCleanContentResolvesSafe(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: succeededWith()}
	notifier := &fakeNotifier{}
	flusher := &fakeFlusher{}

	p := NewProcessor(videos, mod, notifier, flusher, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, models.SensitivitySafe, got.Sensitivity)
	assert.Empty(t, got.FlaggedReason)
	assert.Equal(t, thumbnailPreview, got.ThumbnailPath)
	assert.Equal(t, 1, flusher.count())

	events := notifier.all()
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, "alice", e.userID)
	}
	final := events[len(events)-1].event
	assert.Equal(t, EventStatusCompleted, final.Status)
	require.NotNil(t, final.Progress)
	assert.Equal(t, 100, *final.Progress)
	assert.Equal(t, "safe", final.Sensitivity)
	assert.Equal(t, "Processing Complete. Content is Safe.", final.Msg)
}

func TestProcessLabelsResolveFlaggedWithJoinedReason(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: succeededWith(
		moderation.Label{Name: "Violence", Confidence: 87.5},
		moderation.Label{Name: "Explicit Nudity", Confidence: 66.2},
	)}
	notifier := &fakeNotifier{}

	p := NewProcessor(videos, mod, notifier, &fakeFlusher{}, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, models.SensitivityFlagged, got.Sensitivity)
	assert.Equal(t, "Violence, Explicit Nudity", got.FlaggedReason)

	events := notifier.all()
	final := events[len(events)-1].event
	assert.Equal(t, "flagged", final.Sensitivity)
	assert.Equal(t, "Violence, Explicit Nudity", final.Reason)
	assert.Equal(t, "Caution: Content Flagged (2 issues detected: Violence, Explicit Nudity)", final.Msg)
}

func TestProcessProgressSequence(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: []*moderation.JobResult{
		{Status: moderation.JobInProgress},
		{Status: moderation.JobInProgress},
		{Status: moderation.JobSucceeded},
	}}
	notifier := &fakeNotifier{}

	p := NewProcessor(videos, mod, notifier, &fakeFlusher{}, fastConfig())
	p.Process(context.Background(), "v1")

	var progress []int
	for _, e := range notifier.all() {
		if e.event.Progress != nil {
			progress = append(progress, *e.event.Progress)
		}
	}
	assert.Equal(t, []int{10, 30, 50, 50, 90, 100}, progress)
}

func TestProcessServiceFailureMarksFailed(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: []*moderation.JobResult{
		{Status: moderation.JobFailed, StatusMessage: "codec not supported"},
	}}
	notifier := &fakeNotifier{}
	flusher := &fakeFlusher{}

	p := NewProcessor(videos, mod, notifier, flusher, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, got.Processing)
	// A provider-reported failure is not a fault: the safety axis stays
	// unresolved and no fail-safe verdict is written.
	assert.Equal(t, models.SensitivityPending, got.Sensitivity)
	assert.Empty(t, got.FlaggedReason)
	assert.Equal(t, 1, flusher.count())

	events := notifier.all()
	final := events[len(events)-1].event
	assert.Equal(t, EventStatusFailed, final.Status)
	assert.Nil(t, final.Progress)
	assert.Equal(t, "AI Analysis Failed.", final.Msg)
}

func TestProcessSubmitFaultAppliesFailSafe(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{startErr: errors.New("throttled by provider")}
	notifier := &fakeNotifier{}
	flusher := &fakeFlusher{}

	p := NewProcessor(videos, mod, notifier, flusher, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, models.SensitivityFlagged, got.Sensitivity)
	assert.Equal(t, "AI Processing Error: throttled by provider", got.FlaggedReason)
	assert.Equal(t, thumbnailError, got.ThumbnailPath)
	assert.Equal(t, 1, flusher.count())

	events := notifier.all()
	final := events[len(events)-1].event
	assert.Equal(t, EventStatusCompleted, final.Status)
	assert.Equal(t, "flagged", final.Sensitivity)
	assert.Equal(t, "AI Processing Error: throttled by provider", final.Reason)
	assert.Equal(t, "AI Analysis Failed (Video is viewable): throttled by provider", final.Msg)
}

func TestProcessPollFaultKeepsExistingThumbnail(t *testing.T) {
	videos := newTestVideoStore(t)
	v := seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")
	thumb := "videos/v1-thumb.png"
	_, err := videos.Update(context.Background(), v.ID, models.VideoUpdate{ThumbnailPath: &thumb})
	require.NoError(t, err)

	mod := &fakeModClient{getErr: errors.New("connection reset")}
	p := NewProcessor(videos, mod, &fakeNotifier{}, &fakeFlusher{}, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, models.SensitivityFlagged, got.Sensitivity)
	assert.Equal(t, "AI Processing Error: connection reset", got.FlaggedReason)
	assert.Equal(t, thumb, got.ThumbnailPath)
}

func TestProcessInvalidReferenceMarksFailed(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", `C:\uploads\v1.mp4`)

	mod := &fakeModClient{}
	notifier := &fakeNotifier{}

	p := NewProcessor(videos, mod, notifier, &fakeFlusher{}, fastConfig())
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, got.Processing)
	assert.Equal(t, models.SensitivityPending, got.Sensitivity)
	assert.Equal(t, 0, mod.starts())

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventStatusFailed, events[0].event.Status)
}

func TestProcessMissingVideoIsNoOp(t *testing.T) {
	videos := newTestVideoStore(t)
	mod := &fakeModClient{}
	notifier := &fakeNotifier{}
	flusher := &fakeFlusher{}

	p := NewProcessor(videos, mod, notifier, flusher, fastConfig())
	p.Process(context.Background(), "ghost")

	assert.Equal(t, 0, mod.starts())
	assert.Empty(t, notifier.all())
	assert.Equal(t, 0, flusher.count())
}

func TestProcessDeletedMidFlightAbandonsSilently(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: succeededWith()}
	mod.onStart = func() {
		require.NoError(t, videos.Delete(context.Background(), "v1"))
	}
	notifier := &fakeNotifier{}
	flusher := &fakeFlusher{}

	p := NewProcessor(videos, mod, notifier, flusher, fastConfig())
	p.Process(context.Background(), "v1")

	_, err := videos.GetByID(context.Background(), "v1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, flusher.count())

	for _, e := range notifier.all() {
		assert.NotEqual(t, EventStatusCompleted, e.event.Status)
	}
}

func TestProcessPollTimeoutAppliesFailSafe(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	mod := &fakeModClient{getResults: []*moderation.JobResult{
		{Status: moderation.JobInProgress},
	}}
	cfg := ProcessorConfig{PollInterval: time.Millisecond, PollTimeout: 20 * time.Millisecond}

	p := NewProcessor(videos, mod, &fakeNotifier{}, &fakeFlusher{}, cfg)
	p.Process(context.Background(), "v1")

	got, err := videos.GetByID(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, models.SensitivityFlagged, got.Sensitivity)
	assert.Equal(t, "AI Processing Error: moderation timed out", got.FlaggedReason)
}

func TestProcessConcurrentRunsCollapse(t *testing.T) {
	videos := newTestVideoStore(t)
	seedVideo(t, videos, "v1", "alice", "videos/v1.mp4")

	release := make(chan struct{})
	mod := &fakeModClient{getResults: succeededWith()}
	mod.onStart = func() { <-release }

	p := NewProcessor(videos, mod, &fakeNotifier{}, &fakeFlusher{}, fastConfig())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Process(context.Background(), "v1")
	}()

	// Wait for the first run to hold the guard, then fire a duplicate.
	require.Eventually(t, func() bool { return mod.starts() == 1 }, time.Second, time.Millisecond)
	p.Process(context.Background(), "v1")
	close(release)
	wg.Wait()

	assert.Equal(t, 1, mod.starts())
}
