// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

// Package moderation wraps the cloud content-moderation provider behind
// a narrow asynchronous-job interface: submit a stored object for
// analysis, then poll the returned job until it reaches a terminal
// status. The production implementation targets AWS Rekognition video
// moderation; resiliency (circuit breaking, poll throttling) is layered
// on as a decorator so the pipeline never talks to the raw client.
package moderation

import (
	"context"
	"errors"
)

// JobStatus is the poll status of a moderation job.
type JobStatus string

const (
	JobInProgress JobStatus = "in_progress"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether polling can stop.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Label is one detected moderation category above the confidence
// threshold.
type Label struct {
	Name       string
	Confidence float64
}

// JobResult is one poll observation of a moderation job.
type JobResult struct {
	Status JobStatus
	// Labels is populated on JobSucceeded; an empty list means the
	// content is clean.
	Labels []Label
	// StatusMessage carries the provider's diagnostic on JobFailed.
	StatusMessage string
}

// ErrJobNotFound is returned when polling an unknown job ID.
var ErrJobNotFound = errors.New("moderation job not found")

// Client is the asynchronous moderation-provider interface.
type Client interface {
	// StartAnalysis submits the stored object for moderation and
	// returns the provider's job ID.
	StartAnalysis(ctx context.Context, objectKey string) (string, error)
	// GetAnalysis polls a job. The result is terminal once
	// Status.Terminal() is true; further polls are undefined.
	GetAnalysis(ctx context.Context, jobID string) (*JobResult, error)
}
