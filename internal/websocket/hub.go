// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeVideoProcessing = "video_processing"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// directed wraps a message with its target user for room delivery.
type directed struct {
	userID  string
	message Message
}

// Hub maintains the set of active clients grouped into per-user rooms.
// Progress events are delivered only to the connections of the user who
// owns the affected video, never broadcast globally.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	emit       chan directed
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		emit:       make(chan directed, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
	}
}

// RunWithContext starts the hub with context support for graceful shutdown.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are gracefully closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Directed messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle client lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
			// No lifecycle events pending
		}

		// Priority 3: Handle directed messages or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case msg := <-h.emit:
			h.deliverToUser(msg.userID, msg.message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	room := h.byUser[client.userID]
	if room == nil {
		room = make(map[*Client]bool)
		h.byUser[client.userID] = room
	}
	room[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		h.detachFromRoom(client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("user_id", client.userID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// detachFromRoom removes the client from its user room. Caller holds h.mu.
func (h *Hub) detachFromRoom(client *Client) {
	if room, ok := h.byUser[client.userID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.byUser, client.userID)
		}
	}
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is NOT logged as an error because cancellation
// is expected during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()

	h.closeAllClients()

	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// deliverToUser sends a message to every connection in the user's room
// in a deterministic order.
// DETERMINISM: Sorts clients by ID so delivery order is reproducible.
func (h *Hub) deliverToUser(userID string, message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.byUser[userID]
	if !ok {
		// Nobody is listening; best-effort delivery means this is fine
		return
	}

	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	// Track clients to remove (can't modify map during iteration)
	var toRemove []*Client

	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			// Channel full or closed, mark for removal
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.WSErrors.WithLabelValues("send_buffer_full").Inc()
		close(client.send)
		delete(h.clients, client)
		h.detachFromRoom(client)
	}
}

// closeAllClients gracefully closes all connected WebSocket clients.
// DETERMINISM: Closes clients in ID order for consistent shutdown behavior.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		h.detachFromRoom(client)
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// EmitToUser queues a message for every active connection of one user.
// Delivery is best-effort: if the hub's queue is full the message is
// dropped with a warning, never blocking the caller.
func (h *Hub) EmitToUser(userID, messageType string, data interface{}) {
	msg := directed{
		userID:  userID,
		message: Message{Type: messageType, Data: data},
	}

	select {
	case h.emit <- msg:
	default:
		metrics.WSErrors.WithLabelValues("emit_queue_full").Inc()
		logging.Warn().
			Str("user_id", userID).
			Str("message_type", messageType).
			Msg("emit queue full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetUserClientCount returns the number of connections in one user's room
func (h *Hub) GetUserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
