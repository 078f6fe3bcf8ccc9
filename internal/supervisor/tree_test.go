// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// mockService blocks until its context is canceled and counts starts.
type mockService struct {
	name   string
	starts atomic.Int64
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func (m *mockService) StartCount() int64 { return m.starts.Load() }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTreeConstruction(t *testing.T) {
	t.Run("applies default values for zero config", func(t *testing.T) {
		tree := NewTree(testLogger(), TreeConfig{})

		if tree.config.FailureThreshold != 5.0 {
			t.Errorf("expected default FailureThreshold 5.0, got %f", tree.config.FailureThreshold)
		}
		if tree.config.FailureDecay != 30.0 {
			t.Errorf("expected default FailureDecay 30.0, got %f", tree.config.FailureDecay)
		}
		if tree.config.FailureBackoff != 15*time.Second {
			t.Errorf("expected default FailureBackoff 15s, got %v", tree.config.FailureBackoff)
		}
		if tree.config.ShutdownTimeout != 10*time.Second {
			t.Errorf("expected default ShutdownTimeout 10s, got %v", tree.config.ShutdownTimeout)
		}
	})

	t.Run("keeps explicit config values", func(t *testing.T) {
		tree := NewTree(testLogger(), TreeConfig{
			FailureThreshold: 3,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  2 * time.Second,
		})

		if tree.config.FailureThreshold != 3 {
			t.Errorf("expected FailureThreshold 3, got %f", tree.config.FailureThreshold)
		}
		if tree.config.FailureBackoff != time.Second {
			t.Errorf("expected FailureBackoff 1s, got %v", tree.config.FailureBackoff)
		}
	})
}

func TestTreeLifecycle(t *testing.T) {
	t.Run("starts services in both layers and stops gracefully", func(t *testing.T) {
		tree := NewTree(testLogger(), TreeConfig{
			FailureBackoff:  100 * time.Millisecond,
			ShutdownTimeout: time.Second,
		})

		messagingSvc := newMockService("mock-messaging")
		apiSvc := newMockService("mock-api")
		tree.AddMessagingService(messagingSvc)
		tree.AddAPIService(apiSvc)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			errCh <- tree.Serve(ctx)
		}()

		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if messagingSvc.StartCount() >= 1 && apiSvc.StartCount() >= 1 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if messagingSvc.StartCount() < 1 {
			t.Error("messaging service was not started")
		}
		if apiSvc.StartCount() < 1 {
			t.Error("api service was not started")
		}

		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down in time")
		}
	})

	t.Run("ServeBackground yields the terminal error", func(t *testing.T) {
		tree := NewTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("did not receive from error channel")
		}
	})
}
