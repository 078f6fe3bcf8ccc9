// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHub runs the hub under a cancelable context and returns a stop
// function that waits for shutdown.
func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	return hub, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

// registerTestClient registers a connection-less client for one user.
func registerTestClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		send:   make(chan Message, 16),
	}
	hub.Register <- client

	require.Eventually(t, func() bool {
		return hub.GetUserClientCount(userID) > 0
	}, time.Second, 5*time.Millisecond)
	return client
}

func TestHubRegisterUnregister(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	client := registerTestClient(t, hub, "alice")
	assert.Equal(t, 1, hub.GetClientCount())
	assert.Equal(t, 1, hub.GetUserClientCount("alice"))

	hub.Unregister <- client
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.GetUserClientCount("alice"))
}

func TestEmitToUserReachesOnlyThatRoom(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	alice := registerTestClient(t, hub, "alice")
	bob := registerTestClient(t, hub, "bob")

	hub.EmitToUser("alice", MessageTypeVideoProcessing, map[string]string{"videoId": "v1"})

	select {
	case msg := <-alice.send:
		assert.Equal(t, MessageTypeVideoProcessing, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("alice never received the event")
	}

	select {
	case msg := <-bob.send:
		t.Fatalf("bob received a message meant for alice: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitToUserAllConnections(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	first := registerTestClient(t, hub, "alice")
	second := registerTestClient(t, hub, "alice")

	hub.EmitToUser("alice", MessageTypeVideoProcessing, "payload")

	for _, c := range []*Client{first, second} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "payload", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("connection missed the room event")
		}
	}
}

func TestEmitToAbsentUserIsDropped(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	registerTestClient(t, hub, "alice")

	// Must not block or panic with no matching room
	hub.EmitToUser("nobody", MessageTypeVideoProcessing, "lost")
	assert.Equal(t, 1, hub.GetClientCount())
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		err := hub.RunWithContext(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		close(done)
	}()

	client := registerTestClient(t, hub, "alice")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not shut down")
	}

	// The hub drains rooms and closes send channels on shutdown
	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.GetClientCount())
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypeVideoProcessing, Data: map[string]string{"videoId": "v1"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"video_processing"`)
	assert.Contains(t, string(data), `"videoId":"v1"`)
}
