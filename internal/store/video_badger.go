// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/pulsedev/pulsestream/internal/metrics"
	"github.com/pulsedev/pulsestream/internal/models"
)

const videoKeyPrefix = "video:"

// BadgerVideoStore implements VideoStore using BadgerDB. Each video is a
// JSON document keyed by "video:<id>"; partial updates are applied
// read-modify-write inside a single transaction.
type BadgerVideoStore struct {
	db *badger.DB
}

// NewBadgerVideoStore creates a new BadgerDB-backed video store.
func NewBadgerVideoStore(db *badger.DB) *BadgerVideoStore {
	return &BadgerVideoStore{db: db}
}

func videoKey(id string) []byte {
	return []byte(videoKeyPrefix + id)
}

// Create stores a new video record. Returns ErrConflict if a record
// with the same ID already exists.
func (s *BadgerVideoStore) Create(ctx context.Context, video *models.Video) error {
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := videoKey(video.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check video: %w", err)
		}

		data, err := json.Marshal(video)
		if err != nil {
			return fmt.Errorf("marshal video: %w", err)
		}
		return txn.Set(key, data)
	})
	metrics.RecordStoreOp("create", "videos", time.Since(start), err)
	return err
}

// GetByID retrieves a video record by ID.
func (s *BadgerVideoStore) GetByID(ctx context.Context, id string) (*models.Video, error) {
	start := time.Now()
	var video models.Video

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(videoKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get video: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &video)
		})
	})
	metrics.RecordStoreOp("get", "videos", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return &video, nil
}

// Update applies a partial update to a video record atomically and
// returns the patched record. Concurrent updates to the same record
// serialize through Badger's transaction conflict detection.
func (s *BadgerVideoStore) Update(ctx context.Context, id string, update models.VideoUpdate) (*models.Video, error) {
	start := time.Now()
	var video models.Video

	err := s.db.Update(func(txn *badger.Txn) error {
		key := videoKey(id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get video: %w", err)
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &video)
		}); err != nil {
			return fmt.Errorf("unmarshal video: %w", err)
		}

		update.Apply(&video)
		video.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&video)
		if err != nil {
			return fmt.Errorf("marshal video: %w", err)
		}
		return txn.Set(key, data)
	})
	metrics.RecordStoreOp("update", "videos", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return &video, nil
}

// List returns the page of records matching the filter, newest first,
// with the total match count. Pages are 1-based.
func (s *BadgerVideoStore) List(ctx context.Context, filter models.VideoFilter, page, pageSize int) ([]*models.Video, int, error) {
	start := time.Now()
	matched, err := s.scan(filter)
	metrics.RecordStoreOp("list", "videos", time.Since(start), err)
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page < 1 {
		page = 1
	}
	// pageSize < 1 disables pagination and returns every match, used by
	// whole-population aggregations.
	if pageSize < 1 {
		return matched, total, nil
	}

	offset := (page - 1) * pageSize
	if offset >= total {
		return []*models.Video{}, total, nil
	}
	end := offset + pageSize
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Delete removes a video record by ID.
func (s *BadgerVideoStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := videoKey(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return fmt.Errorf("get video: %w", err)
		}
		return txn.Delete(key)
	})
	metrics.RecordStoreOp("delete", "videos", time.Since(start), err)
	return err
}

// UpdateWhere applies the update to every record matching the filter in
// one transaction and returns the changed records. Used by the recovery
// operation to force stuck records into a terminal state.
func (s *BadgerVideoStore) UpdateWhere(ctx context.Context, filter models.VideoFilter, update models.VideoUpdate) ([]*models.Video, error) {
	start := time.Now()
	var changed []*models.Video

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(videoKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var video models.Video
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &video)
			}); err != nil {
				return fmt.Errorf("unmarshal video: %w", err)
			}

			if !filter.Matches(&video) {
				continue
			}

			update.Apply(&video)
			video.UpdatedAt = time.Now().UTC()

			data, err := json.Marshal(&video)
			if err != nil {
				return fmt.Errorf("marshal video: %w", err)
			}
			if err := txn.Set(videoKey(video.ID), data); err != nil {
				return fmt.Errorf("set video: %w", err)
			}

			v := video
			changed = append(changed, &v)
		}
		return nil
	})
	metrics.RecordStoreOp("update_where", "videos", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return changed, nil
}

// scan reads all records matching the filter.
func (s *BadgerVideoStore) scan(filter models.VideoFilter) ([]*models.Video, error) {
	var matched []*models.Video

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(videoKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var video models.Video
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &video)
			}); err != nil {
				return fmt.Errorf("unmarshal video: %w", err)
			}

			if filter.Matches(&video) {
				v := video
				matched = append(matched, &v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}
