package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codefionn/threadgate/internal/consts"
	"github.com/codefionn/threadgate/internal/logger"
	"github.com/codefionn/threadgate/internal/store"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = consts.Timeout10Seconds

	// Time allowed to read the next pong message from the peer
	pongWait = consts.Timeout60Seconds

	// Send pings with this period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Client represents one websocket connection. It is created unauthenticated;
// the first frame must be an auth frame before anything else is processed.
type Client struct {
	// Connection identifier, fresh random id per socket
	ID string

	conn     *websocket.Conn
	hub      *Hub
	threads  *ThreadStore
	bridge   *StreamingBridge
	verifier tokenVerifier

	// Outbound frame channel, drained by the write pump
	send chan interface{}

	mu            sync.Mutex
	authenticated bool
	userID        string
	deviceID      string
	closed        bool

	stopOnce sync.Once
	stopChan chan struct{}
}

// newClient creates a client for an upgraded websocket connection
func newClient(conn *websocket.Conn, hub *Hub, threads *ThreadStore, bridge *StreamingBridge, verifier tokenVerifier) *Client {
	return &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		hub:      hub,
		threads:  threads,
		bridge:   bridge,
		verifier: verifier,
		send:     make(chan interface{}, consts.SendBufferSize),
		stopChan: make(chan struct{}),
	}
}

// Start registers the client and begins its read/write pumps
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// Stop tears the connection down. Safe to call more than once; resident
// threads are left in memory so a reconnecting client can load them.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.hub.Remove(c.ID)
		c.conn.Close()

		logger.Info("Connection %s stopped", c.ID)
	})
}

// Authenticated reports whether the auth handshake has completed
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// UserID returns the authenticated user id, empty before auth
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) setIdentity(userID, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
	c.userID = userID
	c.deviceID = deviceID
}

// Send enqueues a frame for delivery. Delivery is best-effort: frames for a
// closed connection or a full buffer are dropped with a warning, never an
// error back to the caller.
func (c *Client) Send(frame interface{}) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- frame:
	default:
		logger.Warn("Send buffer full for connection %s, frame dropped", c.ID)
	}
}

func (c *Client) sendError(threadID, message string) {
	c.Send(newErrorFrame(threadID, message))
}

// readPump is the single consumer of inbound frames for this connection;
// frames are processed in arrival order.
func (c *Client) readPump() {
	defer c.Stop()

	c.conn.SetReadLimit(consts.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("Read error on connection %s: %v", c.ID, err)
			}
			return
		}

		c.handleFrame(raw)
	}
}

// writePump is the single writer to the socket, which is what gives frames
// their per-connection ordering guarantee.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Stop()
	}()

	for {
		select {
		case <-c.stopChan:
			return

		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(frame)
			if err != nil {
				logger.Error("Failed to marshal frame for connection %s: %v", c.ID, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Failed to write frame to connection %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame parses and dispatches one inbound frame. It fails closed:
// before authentication, everything except auth is answered with an error
// frame and goes no further. A malformed or unknown frame never kills the
// connection.
func (c *Client) handleFrame(raw []byte) {
	var header frameHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		logger.Debug("Malformed frame on connection %s: %v", c.ID, err)
		c.sendError("", "Invalid frame")
		return
	}

	if !c.Authenticated() && header.Type != frameAuth {
		c.sendError("", "Not authenticated")
		return
	}

	switch header.Type {
	case frameAuth:
		c.handleAuth(raw)
	case frameThreadCreate:
		c.handleThreadCreate(raw)
	case frameThreadList:
		c.handleThreadList(raw)
	case frameThreadLoad:
		c.handleThreadLoad(raw)
	case frameThreadMessage:
		c.handleThreadMessage(raw)
	case frameThreadClose:
		c.handleThreadClose(raw)
	case frameActionConfirm:
		c.handleActionConfirm(raw)
	case frameActionCancel:
		c.handleActionCancel(raw)
	default:
		c.sendError("", fmt.Sprintf("Unknown message type: %s", header.Type))
	}
}

func (c *Client) handleAuth(raw []byte) {
	var frame authFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid auth frame")
		return
	}

	userID, err := c.verifier.Verify(frame.Token)
	if err != nil {
		logger.Warn("Authentication failed for connection %s: %v", c.ID, err)
		c.sendError("", "Authentication failed")
		return
	}

	c.setIdentity(userID, frame.DeviceID)
	c.Send(authSuccessFrame{Type: frameAuthSuccess, UserID: userID})
	logger.Info("Connection %s authenticated as %s (device: %s)", c.ID, userID, frame.DeviceID)
}

func (c *Client) handleThreadCreate(raw []byte) {
	var frame threadCreateFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid thread.create frame")
		return
	}

	t := c.threads.Create(context.Background(), c.ID, frame.ProjectHint)

	created := threadCreatedFrame{
		Type:        frameThreadCreated,
		ID:          t.ID,
		ProjectHint: t.ProjectHint,
		CreatedAt:   wireTime(t.CreatedAt),
		UpdatedAt:   wireTime(t.UpdatedAt()),
	}
	c.Send(created)

	// Other devices of the same user keep their thread lists in sync
	c.hub.Broadcast(created, c.UserID(), c.ID)
}

func (c *Client) handleThreadList(raw []byte) {
	var frame threadListFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid thread.list frame")
		return
	}

	threads := c.threads.List(context.Background(), frame.Status, frame.Limit)
	c.Send(threadListResponseFrame{
		Type:    frameThreadList,
		Threads: summarizeThreads(threads),
	})
}

func (c *Client) handleThreadLoad(raw []byte) {
	var frame threadLoadFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid thread.load frame")
		return
	}
	if frame.ThreadID == "" {
		c.sendError("", "Thread ID is required")
		return
	}

	t, err := c.threads.Load(context.Background(), c.ID, frame.ThreadID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("Failed to load thread %s: %v", frame.ThreadID, err)
		}
		c.sendError(frame.ThreadID, "Thread not found")
		return
	}

	c.Send(threadLoadedFrame{
		Type:        frameThreadLoaded,
		ID:          t.ID,
		ProjectHint: t.ProjectHint,
		Messages:    payloadFromMessages(t.snapshotMessages()),
		CreatedAt:   wireTime(t.CreatedAt),
		UpdatedAt:   wireTime(t.UpdatedAt()),
	})
}

func (c *Client) handleThreadMessage(raw []byte) {
	var frame threadMessageFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid thread.message frame")
		return
	}
	if frame.ThreadID == "" || frame.Content == "" {
		c.sendError(frame.ThreadID, "Thread ID and content are required")
		return
	}

	t, ok := c.threads.Get(frame.ThreadID)
	if !ok {
		c.sendError(frame.ThreadID, "Thread not found")
		return
	}

	// One active request per thread; callers must wait for stream.end
	if !t.beginRequest() {
		c.sendError(t.ID, "Thread busy")
		return
	}

	appended := t.appendMessage("user", frame.Content)
	actionID := uuid.NewString()

	c.Send(streamStartFrame{Type: frameStreamStart, ThreadID: t.ID, ActionID: actionID})

	// The engine run gets its own goroutine so this connection can keep
	// processing frames, in particular the confirmation answer the run
	// may end up waiting for.
	go c.bridge.run(c, t, actionID, frame, appended)
}

func (c *Client) handleThreadClose(raw []byte) {
	var frame threadCloseFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid thread.close frame")
		return
	}
	if frame.ThreadID == "" {
		c.sendError("", "Thread ID is required")
		return
	}

	c.threads.Close(context.Background(), frame.ThreadID, frame.Archive)

	deleted := threadDeletedFrame{Type: frameThreadDeleted, ThreadID: frame.ThreadID}
	c.Send(deleted)
	c.hub.Broadcast(deleted, c.UserID(), c.ID)
}

func (c *Client) handleActionConfirm(raw []byte) {
	var frame actionConfirmFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid action.confirm frame")
		return
	}

	// Unknown action ids are benign: the client answering after the server
	// already cancelled the action on thread close is an expected race.
	c.threads.Resolve(frame.ActionID, frame.Confirmed)
}

func (c *Client) handleActionCancel(raw []byte) {
	var frame actionCancelFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "Invalid action.cancel frame")
		return
	}

	c.threads.Resolve(frame.ActionID, false)
}
