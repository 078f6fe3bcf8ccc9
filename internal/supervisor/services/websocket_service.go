// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package services

import (
	"context"
)

// ContextHub matches the websocket hub's RunWithContext without
// importing the websocket package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService supervises the websocket hub. RunWithContext
// already follows the suture.Service pattern; this wrapper only adds the
// service name.
type WebSocketHubService struct {
	hub ContextHub
}

// NewWebSocketHubService wraps a hub as a supervised service.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{hub: hub}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (w *WebSocketHubService) String() string {
	return "websocket-hub"
}
