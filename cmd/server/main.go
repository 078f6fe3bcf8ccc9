// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Command server runs the PulseStream backend: the HTTP API, the
// websocket event channel, and the supervised moderation pipeline.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedev/pulsestream/internal/api"
	"github.com/pulsedev/pulsestream/internal/auth"
	"github.com/pulsedev/pulsestream/internal/cache"
	"github.com/pulsedev/pulsestream/internal/config"
	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/models"
	"github.com/pulsedev/pulsestream/internal/moderation"
	"github.com/pulsedev/pulsestream/internal/objectstore"
	"github.com/pulsedev/pulsestream/internal/pipeline"
	"github.com/pulsedev/pulsestream/internal/store"
	"github.com/pulsedev/pulsestream/internal/supervisor"
	"github.com/pulsedev/pulsestream/internal/supervisor/services"
	ws "github.com/pulsedev/pulsestream/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Str("bucket", cfg.ObjectStore.Bucket).
		Str("environment", cfg.Server.Environment).
		Msg("Starting PulseStream")

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing record store")
		}
	}()

	videos := store.NewBadgerVideoStore(db)
	users := store.NewBadgerUserStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seedAdmin(ctx, users, &cfg.Security); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed admin account")
	}

	objects, err := objectstore.NewS3Store(ctx, cfg.ObjectStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	rekognition, err := moderation.NewRekognitionClient(ctx, cfg.ObjectStore, float64(cfg.Moderation.MinConfidence))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize moderation client")
	}
	modClient := moderation.NewResilientClient(rekognition, moderation.ResilientConfig{
		PollRatePerSecond: cfg.Moderation.PollRatePerSecond,
	})

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	responseCache := cache.New(cfg.Cache.TTL)
	hub := ws.NewHub()

	pubsub := pipeline.NewPubSub()
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message bus")
		}
	}()

	processor := pipeline.NewProcessor(videos, modClient, hub, responseCache, pipeline.ProcessorConfig{
		PollInterval: cfg.Moderation.PollInterval,
		PollTimeout:  cfg.Moderation.PollTimeout,
	})
	recovery := pipeline.NewRecovery(videos, responseCache)

	handler := api.NewHandler(cfg, videos, users, objects, responseCache, hub, jwtManager, pubsub, recovery)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), api.NewChiMiddleware(&cfg.Security), responseCache)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // streaming responses run long
		IdleTimeout:  2 * time.Minute,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(pipeline.NewService(pubsub, processor))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// seedAdmin creates the initial admin account when none exists, so a
// fresh deployment can log in and register the rest of the users.
func seedAdmin(ctx context.Context, users store.UserStore, cfg *config.SecurityConfig) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		logging.Warn().Msg("No admin credentials configured, skipping admin seed")
		return nil
	}

	_, err := users.GetByUsername(ctx, cfg.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        cfg.AdminUsername + "@localhost",
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, admin); err != nil {
		return err
	}
	logging.Info().Str("username", cfg.AdminUsername).Msg("Seeded admin account")
	return nil
}
