// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package store provides BadgerDB-backed persistence for video records
// and user accounts. Video documents are stored as JSON values under a
// key prefix; every partial update runs inside a single Badger
// transaction so concurrent pipeline transitions and HTTP mutations
// never interleave on the same record.
package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/pulsedev/pulsestream/internal/models"
)

// Sentinel errors returned by store implementations.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// VideoStore persists video records and their moderation state.
type VideoStore interface {
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id string) (*models.Video, error)
	// Update applies a partial update atomically: the record is read,
	// patched and written back inside one transaction. Returns the
	// updated record, or ErrNotFound if the record has been deleted.
	Update(ctx context.Context, id string, update models.VideoUpdate) (*models.Video, error)
	// List returns the page of records matching the filter, newest
	// first, along with the total match count. pageSize < 1 returns
	// every match unpaginated.
	List(ctx context.Context, filter models.VideoFilter, page, pageSize int) ([]*models.Video, int, error)
	Delete(ctx context.Context, id string) error
	// UpdateWhere applies the update to every record matching the
	// filter and returns the records it changed.
	UpdateWhere(ctx context.Context, filter models.VideoFilter, update models.VideoUpdate) ([]*models.Video, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]*models.User, error)
}

// Open opens the BadgerDB database at path. An empty path opens an
// in-memory database, used by tests and throwaway environments.
func Open(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	// Badger's default logger prints to stderr; the caller wires
	// logging through zerolog instead.
	opts = opts.WithLogger(nil)

	return badger.Open(opts)
}
