// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package objectstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotRemoteReference marks a storage reference that does not point at
// the object store, such as a legacy local file path. Content behind such
// a reference cannot be submitted for moderation.
var ErrNotRemoteReference = errors.New("storage reference is not a remote object")

// keyPrefix is the namespace Put writes under; bare keys with this prefix
// are accepted as remote references without a URL wrapper.
const keyPrefix = "videos/"

// ParseReference derives the object-store key from a stored reference.
//
// Three reference shapes occur in practice:
//   - a bare object key as written by Put ("videos/<ts>-<name>")
//   - a full object URL ("https://bucket.s3.amazonaws.com/videos/a%20b.mp4"),
//     from records imported before keys were stored directly
//   - a legacy local path, which is rejected with ErrNotRemoteReference
func ParseReference(ref string) (string, error) {
	if ref == "" {
		return "", ErrNotRemoteReference
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotRemoteReference, err)
		}

		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return "", ErrNotRemoteReference
		}

		decoded, err := url.PathUnescape(key)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotRemoteReference, err)
		}
		return decoded, nil
	}

	if strings.HasPrefix(ref, keyPrefix) {
		return ref, nil
	}

	return "", ErrNotRemoteReference
}
