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

// Key prefixes for BadgerDB storage
const (
	userKeyPrefix     = "user:"
	usernameKeyPrefix = "username:"
)

// storedUser is the persistence codec for a user record. The API model
// hides the password hash from JSON output; storage must keep it, so the
// record is marshaled through this struct instead of models.User.
type storedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

func encodeUser(user *models.User) ([]byte, error) {
	return json.Marshal(storedUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
	})
}

func decodeUser(data []byte, user *models.User) error {
	var rec storedUser
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*user = models.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Email:        rec.Email,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		CreatedAt:    rec.CreatedAt,
	}
	return nil
}

// BadgerUserStore implements UserStore using BadgerDB. Users are keyed
// by "user:<id>" with a "username:<name>" index for login lookups.
type BadgerUserStore struct {
	db *badger.DB
}

// NewBadgerUserStore creates a new BadgerDB-backed user store.
func NewBadgerUserStore(db *badger.DB) *BadgerUserStore {
	return &BadgerUserStore{db: db}
}

// Create stores a new user. Returns ErrConflict if the username is
// already taken.
func (s *BadgerUserStore) Create(ctx context.Context, user *models.User) error {
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		usernameKey := []byte(usernameKeyPrefix + user.Username)
		if _, err := txn.Get(usernameKey); err == nil {
			return ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check username: %w", err)
		}

		data, err := encodeUser(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}

		if err := txn.Set([]byte(userKeyPrefix+user.ID), data); err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		// Index entry maps username to user ID
		if err := txn.Set(usernameKey, []byte(user.ID)); err != nil {
			return fmt.Errorf("set username index: %w", err)
		}
		return nil
	})
	metrics.RecordStoreOp("create", "users", time.Since(start), err)
	return err
}

// GetByID retrieves a user by ID.
func (s *BadgerUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	start := time.Now()
	var user models.User

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return item.Value(func(val []byte) error {
			return decodeUser(val, &user)
		})
	})
	metrics.RecordStoreOp("get", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user through the username index.
func (s *BadgerUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	start := time.Now()
	var user models.User

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernameKeyPrefix + username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get username index: %w", err)
		}

		var userID string
		if err := item.Value(func(val []byte) error {
			userID = string(val)
			return nil
		}); err != nil {
			return err
		}

		userItem, err := txn.Get([]byte(userKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return userItem.Value(func(val []byte) error {
			return decodeUser(val, &user)
		})
	})
	metrics.RecordStoreOp("get_by_username", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByRole returns all users with the given role, sorted by name.
func (s *BadgerUserStore) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	start := time.Now()
	var users []*models.User

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var user models.User
			if err := item.Value(func(val []byte) error {
				return decodeUser(val, &user)
			}); err != nil {
				return fmt.Errorf("unmarshal user: %w", err)
			}

			if user.Role == role {
				u := user
				users = append(users, &u)
			}
		}
		return nil
	})
	metrics.RecordStoreOp("list_by_role", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users, nil
}
