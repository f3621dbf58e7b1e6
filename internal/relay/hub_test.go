package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/threadgate/internal/consts"
)

func newHubClient(id, userID string, authenticated bool) *Client {
	return &Client{
		ID:            id,
		authenticated: authenticated,
		userID:        userID,
		send:          make(chan interface{}, consts.SendBufferSize),
		stopChan:      make(chan struct{}),
	}
}

func TestHubRegisterRemove(t *testing.T) {
	h := NewHub()
	c := newHubClient("conn-1", "user-a", true)

	h.Register(c)
	assert.Equal(t, 1, h.Count())

	got, ok := h.Get("conn-1")
	require.True(t, ok)
	assert.Same(t, c, got)

	h.Remove("conn-1")
	assert.Equal(t, 0, h.Count())

	// Removing twice is harmless
	h.Remove("conn-1")
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	sender := newHubClient("sender", "user-a", true)
	peer := newHubClient("peer", "user-a", true)
	other := newHubClient("other", "user-b", true)
	stranger := newHubClient("stranger", "user-a", false)

	h.Register(sender)
	h.Register(peer)
	h.Register(other)
	h.Register(stranger)

	frame := threadDeletedFrame{Type: frameThreadDeleted, ThreadID: "t-1"}
	h.Broadcast(frame, "user-a", "sender")

	// Only the sender's other authenticated connection receives it
	select {
	case got := <-peer.send:
		assert.Equal(t, frame, got)
	default:
		t.Fatal("peer did not receive broadcast")
	}

	assert.Empty(t, sender.send, "sender must be excluded")
	assert.Empty(t, other.send, "other users must not see the frame")
	assert.Empty(t, stranger.send, "unauthenticated connections must be skipped")
}
