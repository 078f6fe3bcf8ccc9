// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package objectstore

import (
	"errors"
	"strings"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantKey string
		wantErr bool
	}{
		{
			name:    "bare object key",
			ref:     "videos/1756512000000000000-demo.mp4",
			wantKey: "videos/1756512000000000000-demo.mp4",
		},
		{
			name:    "full object URL",
			ref:     "https://pulsestream.s3.amazonaws.com/videos/1756512000-demo.mp4",
			wantKey: "videos/1756512000-demo.mp4",
		},
		{
			name:    "URL with escaped key",
			ref:     "https://pulsestream.s3.amazonaws.com/videos/my%20video.mp4",
			wantKey: "videos/my video.mp4",
		},
		{
			name:    "legacy local path",
			ref:     "uploads/local-file.mp4",
			wantErr: true,
		},
		{
			name:    "absolute local path",
			ref:     "/var/media/file.mp4",
			wantErr: true,
		},
		{
			name:    "empty reference",
			ref:     "",
			wantErr: true,
		},
		{
			name:    "URL with empty path",
			ref:     "https://pulsestream.s3.amazonaws.com/",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ParseReference(tc.ref)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got key %q", tc.ref, key)
				}
				if !errors.Is(err, ErrNotRemoteReference) {
					t.Errorf("expected ErrNotRemoteReference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tc.wantKey {
				t.Errorf("expected key %q, got %q", tc.wantKey, key)
			}
		})
	}
}

func TestStorageKey(t *testing.T) {
	k1 := StorageKey("demo.mp4")
	k2 := StorageKey("demo.mp4")

	if !strings.HasPrefix(k1, "videos/") {
		t.Errorf("expected videos/ prefix, got %q", k1)
	}
	if !strings.HasSuffix(k1, "-demo.mp4") {
		t.Errorf("expected filename suffix, got %q", k1)
	}
	if k1 == k2 {
		t.Error("expected unique keys for repeated uploads")
	}

	// Generated keys must round-trip through reference parsing
	parsed, err := ParseReference(k1)
	if err != nil {
		t.Fatalf("generated key rejected: %v", err)
	}
	if parsed != k1 {
		t.Errorf("round-trip mismatch: %q != %q", parsed, k1)
	}
}
