// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/pulsestream/internal/models"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestVideo(id, owner string) *models.Video {
	return &models.Video{
		ID:          id,
		OwnerID:     owner,
		Title:       "Video " + id,
		StorageRef:  "videos/" + id + ".mp4",
		Processing:  models.ProcessingPending,
		Sensitivity: models.SensitivityPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestVideoStoreCreateGet(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	v := newTestVideo("v1", "alice")
	require.NoError(t, s.Create(ctx, v))

	got, err := s.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Video v1", got.Title)
	assert.Equal(t, models.ProcessingPending, got.Processing)
}

func TestVideoStoreCreateConflict(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestVideo("v1", "alice")))
	err := s.Create(ctx, newTestVideo("v1", "bob"))
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestVideoStoreGetMissing(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))

	_, err := s.GetByID(context.Background(), "absent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVideoStoreUpdate(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestVideo("v1", "alice")))

	processing := models.ProcessingCompleted
	sensitivity := models.SensitivityFlagged
	reason := "Explicit Nudity, Violence"
	updated, err := s.Update(ctx, "v1", models.VideoUpdate{
		Processing:    &processing,
		Sensitivity:   &sensitivity,
		FlaggedReason: &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, updated.Processing)
	assert.Equal(t, models.SensitivityFlagged, updated.Sensitivity)
	assert.Equal(t, reason, updated.FlaggedReason)

	// Unset fields stay untouched
	assert.Equal(t, "Video v1", updated.Title)

	got, err := s.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
}

func TestVideoStoreUpdateMissing(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))

	processing := models.ProcessingFailed
	_, err := s.Update(context.Background(), "absent", models.VideoUpdate{Processing: &processing})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVideoStoreDelete(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestVideo("v1", "alice")))
	require.NoError(t, s.Delete(ctx, "v1"))

	_, err := s.GetByID(ctx, "v1")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.Delete(ctx, "v1"), ErrNotFound))
}

func TestVideoStoreListPagination(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 25; i++ {
		v := newTestVideo(fmt.Sprintf("v%02d", i), "alice")
		v.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Create(ctx, v))
	}

	page1, total, err := s.List(ctx, models.VideoFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page1, 10)
	// Newest first
	assert.Equal(t, "v24", page1[0].ID)

	page3, _, err := s.List(ctx, models.VideoFilter{}, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	page4, _, err := s.List(ctx, models.VideoFilter{}, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestVideoStoreListFilter(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	owned := newTestVideo("v1", "alice")
	other := newTestVideo("v2", "bob")
	assigned := newTestVideo("v3", "bob")
	assigned.AssignedViewers = []string{"carol"}
	for _, v := range []*models.Video{owned, other, assigned} {
		require.NoError(t, s.Create(ctx, v))
	}

	byOwner, total, err := s.List(ctx, models.VideoFilter{OwnerID: "alice"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "v1", byOwner[0].ID)

	byViewer, _, err := s.List(ctx, models.VideoFilter{AssignedTo: "carol"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, byViewer, 1)
	assert.Equal(t, "v3", byViewer[0].ID)
}

func TestVideoStoreUpdateWhere(t *testing.T) {
	s := NewBadgerVideoStore(newTestDB(t))
	ctx := context.Background()

	stuck1 := newTestVideo("v1", "alice")
	stuck2 := newTestVideo("v2", "alice")
	stuck2.Processing = models.ProcessingActive
	done := newTestVideo("v3", "alice")
	done.Processing = models.ProcessingCompleted
	for _, v := range []*models.Video{stuck1, stuck2, done} {
		require.NoError(t, s.Create(ctx, v))
	}

	processing := models.ProcessingCompleted
	sensitivity := models.SensitivityFlagged
	reason := "Force completed by recovery"
	changed, err := s.UpdateWhere(ctx, models.VideoFilter{
		ProcessingIn: []models.ProcessingStatus{models.ProcessingPending, models.ProcessingActive},
	}, models.VideoUpdate{
		Processing:    &processing,
		Sensitivity:   &sensitivity,
		FlaggedReason: &reason,
	})
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	got, err := s.GetByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingCompleted, got.Processing)
	assert.Equal(t, reason, got.FlaggedReason)

	untouched, err := s.GetByID(ctx, "v3")
	require.NoError(t, err)
	assert.Empty(t, untouched.FlaggedReason)
}
