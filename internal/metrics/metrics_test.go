// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// pollSampleCount reads the observation count of the poll histogram.
func pollSampleCount(t *testing.T) uint64 {
	t.Helper()
	var m dto.Metric
	if err := PipelinePollIterations.Write(&m); err != nil {
		t.Fatalf("failed to read poll histogram: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/videos", "200"))

	RecordAPIRequest("GET", "/api/v1/videos", "200", 15*time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/videos", "200", 30*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/videos", "200"))
	if after-before != 2 {
		t.Errorf("expected 2 requests recorded, got %v", after-before)
	}
}

// TestRecordStoreOp tests store operation metric recording including errors
func TestRecordStoreOp(t *testing.T) {
	before := testutil.ToFloat64(StoreOpErrors.WithLabelValues("get", "videos"))

	RecordStoreOp("get", "videos", time.Millisecond, nil)
	RecordStoreOp("get", "videos", time.Millisecond, errors.New("key not found"))

	after := testutil.ToFloat64(StoreOpErrors.WithLabelValues("get", "videos"))
	if after-before != 1 {
		t.Errorf("expected 1 error recorded, got %v", after-before)
	}
}

// TestRecordPipelineRun tests pipeline outcome counting
func TestRecordPipelineRun(t *testing.T) {
	before := testutil.ToFloat64(PipelineRunsTotal.WithLabelValues("flagged"))
	pollsBefore := pollSampleCount(t)

	RecordPipelineRun("flagged", 42*time.Second, 9)

	after := testutil.ToFloat64(PipelineRunsTotal.WithLabelValues("flagged"))
	if after-before != 1 {
		t.Errorf("expected 1 flagged run recorded, got %v", after-before)
	}
	if got := pollSampleCount(t) - pollsBefore; got != 1 {
		t.Errorf("expected 1 poll-count observation recorded, got %v", got)
	}
}

// TestTrackActiveRequest tests the active request gauge
func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+2 {
		t.Errorf("expected gauge %v, got %v", base+2, got)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Errorf("expected gauge %v, got %v", base+1, got)
	}
	TrackActiveRequest(false)
}
