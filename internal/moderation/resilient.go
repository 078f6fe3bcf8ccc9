// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package moderation

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
)

// ResilientClient decorates a Client with a circuit breaker and a
// process-wide poll rate limit. The breaker guards both provider calls;
// the limiter only gates polling, since concurrent pipeline runs all
// poll on the same cadence and would otherwise burst against the
// provider's read quota.
type ResilientClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[*JobResult]
	starts  *gobreaker.CircuitBreaker[string]
	limiter *rate.Limiter
}

// ResilientConfig tunes the resiliency decorator.
type ResilientConfig struct {
	// PollRatePerSecond bounds GetAnalysis calls across all pipeline
	// runs. Zero disables throttling.
	PollRatePerSecond float64

	// FailureThreshold trips the breaker after this many consecutive
	// provider failures.
	FailureThreshold uint32

	// CoolDown is how long the breaker stays open before probing.
	CoolDown time.Duration
}

// NewResilientClient wraps the given client.
func NewResilientClient(inner Client, cfg ResilientConfig) *ResilientClient {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown == 0 {
		cfg.CoolDown = 30 * time.Second
	}

	onStateChange := func(name string, from, to gobreaker.State) {
		logging.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Moderation circuit breaker state change")
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	}
	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}

	var limiter *rate.Limiter
	if cfg.PollRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PollRatePerSecond), 1)
	}

	return &ResilientClient{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker[*JobResult](gobreaker.Settings{
			Name:          "moderation-poll",
			Timeout:       cfg.CoolDown,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		starts: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:          "moderation-start",
			Timeout:       cfg.CoolDown,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		limiter: limiter,
	}
}

// StartAnalysis submits through the breaker.
func (c *ResilientClient) StartAnalysis(ctx context.Context, objectKey string) (string, error) {
	jobID, err := c.starts.Execute(func() (string, error) {
		return c.inner.StartAnalysis(ctx, objectKey)
	})
	recordBreakerResult("moderation-start", err)
	return jobID, err
}

// GetAnalysis waits for a poll token, then polls through the breaker.
func (c *ResilientClient) GetAnalysis(ctx context.Context, jobID string) (*JobResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	result, err := c.breaker.Execute(func() (*JobResult, error) {
		return c.inner.GetAnalysis(ctx, jobID)
	})
	recordBreakerResult("moderation-poll", err)
	return result, err
}

func recordBreakerResult(name string, err error) {
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
}
