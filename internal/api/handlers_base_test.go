// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/cache"
	"github.com/pulsedev/pulsestream/internal/config"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/pipeline"
	"github.com/pulsedev/pulsestream/internal/store"
	ws "github.com/pulsedev/pulsestream/internal/websocket"
)

// fakeObjectStore records puts and deletes and serves canned URLs.
type fakeObjectStore struct {
	mu        sync.Mutex
	putKeys   []string
	deleted   []string
	signedURL string
	signErr   error
}

func (f *fakeObjectStore) Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := "videos/1700000000000000000-" + name
	f.putKeys = append(f.putKeys, key)
	return key, nil
}

func (f *fakeObjectStore) SignedGetURL(ctx context.Context, key string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return f.signedURL + key, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

// fakePublisher captures published messages.
type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][]*message.Message)}
}

func (f *fakePublisher) Publish(topic string, messages ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], messages...)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published(topic string) []*message.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*message.Message(nil), f.messages[topic]...)
}

// testEnv is one fully wired API instance on in-memory stores.
type testEnv struct {
	handler   http.Handler
	videos    store.VideoStore
	users     store.UserStore
	objects   *fakeObjectStore
	publisher *fakePublisher
	cache     *cache.Cache
	jwt       *auth.JWTManager
	cfg       *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Security.SessionTimeout = time.Hour
	cfg.Security.RateLimitDisabled = true
	cfg.Security.CORSOrigins = []string{"*"}
	cfg.Upload.MaxSizeMB = 64
	cfg.Upload.AllowedExtensions = []string{"mp4", "mov", "avi", "mkv"}
	cfg.API.PageSize = 10
	cfg.Cache.TTL = time.Minute

	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	videos := store.NewBadgerVideoStore(db)
	users := store.NewBadgerUserStore(db)
	objects := &fakeObjectStore{signedURL: "https://signed.example.com/"}
	publisher := newFakePublisher()
	responseCache := cache.New(cfg.Cache.TTL)

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.RunWithContext(ctx)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	require.NoError(t, err)

	recovery := pipeline.NewRecovery(videos, responseCache)
	handler := NewHandler(cfg, videos, users, objects, responseCache, hub, jwtManager, publisher, recovery)
	router := NewRouter(handler, auth.NewMiddleware(jwtManager), NewChiMiddleware(&cfg.Security), responseCache)

	return &testEnv{
		handler:   router.Setup(),
		videos:    videos,
		users:     users,
		objects:   objects,
		publisher: publisher,
		cache:     responseCache,
		jwt:       jwtManager,
		cfg:       cfg,
	}
}

// seedUser creates a user with password "password123" and returns it.
func (e *testEnv) seedUser(t *testing.T, id, username, role string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{
		ID:           id,
		Name:         "User " + username,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(u.ID, u.Username, u.Role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedVideo(t *testing.T, id, owner string, mutate func(*models.Video)) *models.Video {
	t.Helper()
	v := &models.Video{
		ID:          id,
		OwnerID:     owner,
		Title:       "Video " + id,
		StorageRef:  "videos/" + id + ".mp4",
		Processing:  models.ProcessingPending,
		Sensitivity: models.SensitivityPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(v)
	}
	require.NoError(t, e.videos.Create(context.Background(), v))
	return v
}

// do runs a request through the router. token may be empty.
func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil && method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope parses the standard response wrapper, returning the data
// payload re-marshaled into dst.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) *models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if dst != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dst))
	}
	return &envelope
}
