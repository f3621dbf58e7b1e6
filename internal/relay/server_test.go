package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/threadgate/internal/config"
	"github.com/codefionn/threadgate/internal/engine"
	"github.com/codefionn/threadgate/internal/store"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Listen = "localhost:0"

	s := NewServer(cfg, store.NewNop(), engine.NewLoopback())
	require.NoError(t, s.Listen())
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			t.Errorf("server exited: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/ws", s.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func writeWire(t *testing.T, conn *websocket.Conn, frame map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func TestServerHealthEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServerEndToEnd(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestServer(t, s)

	// Anything before auth is rejected
	writeWire(t, conn, map[string]interface{}{"type": "thread.create"})
	frame := readWire(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "Not authenticated", frame["error"])

	writeWire(t, conn, map[string]interface{}{"type": "auth", "token": "e2e-token", "deviceId": "laptop"})
	frame = readWire(t, conn)
	require.Equal(t, "auth.success", frame["type"])
	assert.NotEmpty(t, frame["userId"])

	writeWire(t, conn, map[string]interface{}{"type": "thread.create", "projectHint": "demo"})
	frame = readWire(t, conn)
	require.Equal(t, "thread.created", frame["type"])
	threadID := frame["id"].(string)
	require.NotEmpty(t, threadID)

	writeWire(t, conn, map[string]interface{}{"type": "thread.message", "threadId": threadID, "content": "hello relay"})

	frame = readWire(t, conn)
	require.Equal(t, "stream.start", frame["type"])
	actionID := frame["actionId"].(string)

	var streamed string
	for {
		frame = readWire(t, conn)
		switch frame["type"] {
		case "stream.chunk":
			streamed += frame["text"].(string)
			continue
		case "stream.step":
			continue
		case "stream.end":
		default:
			t.Fatalf("unexpected frame during stream: %v", frame)
		}
		break
	}
	assert.Equal(t, "hello relay ", streamed)

	frame = readWire(t, conn)
	require.Equal(t, "action.complete", frame["type"])
	assert.Equal(t, actionID, frame["actionId"])
	assert.Equal(t, "echo: hello relay", frame["result"])

	writeWire(t, conn, map[string]interface{}{"type": "thread.close", "threadId": threadID})
	frame = readWire(t, conn)
	assert.Equal(t, "thread.deleted", frame["type"])
}

func TestServerConfirmationRoundTrip(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestServer(t, s)

	writeWire(t, conn, map[string]interface{}{"type": "auth", "token": "e2e-token"})
	require.Equal(t, "auth.success", readWire(t, conn)["type"])

	writeWire(t, conn, map[string]interface{}{"type": "thread.create"})
	frame := readWire(t, conn)
	threadID := frame["id"].(string)

	writeWire(t, conn, map[string]interface{}{"type": "thread.message", "threadId": threadID, "content": "confirm: drop the cache"})

	require.Equal(t, "stream.start", readWire(t, conn)["type"])

	frame = readWire(t, conn)
	require.Equal(t, "action.confirm", frame["type"])
	assert.Equal(t, "drop the cache", frame["prompt"])
	actionID := frame["actionId"].(string)

	// Approving over the same socket resumes the suspended task
	writeWire(t, conn, map[string]interface{}{"type": "action.confirm", "actionId": actionID, "confirmed": true})

	for {
		frame = readWire(t, conn)
		if frame["type"] == "stream.end" {
			break
		}
	}

	frame = readWire(t, conn)
	require.Equal(t, "action.complete", frame["type"])
	assert.Equal(t, "echo: drop the cache", frame["result"])
}

func TestServerDecline(t *testing.T) {
	s := startTestServer(t)
	conn := dialTestServer(t, s)

	writeWire(t, conn, map[string]interface{}{"type": "auth", "token": "e2e-token"})
	require.Equal(t, "auth.success", readWire(t, conn)["type"])

	writeWire(t, conn, map[string]interface{}{"type": "thread.create"})
	threadID := readWire(t, conn)["id"].(string)

	writeWire(t, conn, map[string]interface{}{"type": "thread.message", "threadId": threadID, "content": "confirm: rewrite history"})
	require.Equal(t, "stream.start", readWire(t, conn)["type"])

	frame := readWire(t, conn)
	require.Equal(t, "action.confirm", frame["type"])

	writeWire(t, conn, map[string]interface{}{"type": "action.cancel", "actionId": frame["actionId"]})

	require.Equal(t, "stream.end", readWire(t, conn)["type"])
	frame = readWire(t, conn)
	require.Equal(t, "action.complete", frame["type"])
	assert.Equal(t, "cancelled", frame["result"])
}
