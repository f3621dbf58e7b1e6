package relay

import (
	"time"

	"github.com/codefionn/threadgate/internal/store"
)

// Frame type constants
const (
	// Inbound
	frameAuth          = "auth"
	frameThreadCreate  = "thread.create"
	frameThreadList    = "thread.list"
	frameThreadLoad    = "thread.load"
	frameThreadMessage = "thread.message"
	frameThreadClose   = "thread.close"
	frameActionConfirm = "action.confirm"
	frameActionCancel  = "action.cancel"

	// Outbound
	frameAuthSuccess    = "auth.success"
	frameError          = "error"
	frameThreadCreated  = "thread.created"
	frameThreadLoaded   = "thread.loaded"
	frameThreadDeleted  = "thread.deleted"
	frameStreamStart    = "stream.start"
	frameStreamChunk    = "stream.chunk"
	frameStreamStep     = "stream.step"
	frameStreamEnd      = "stream.end"
	frameActionComplete = "action.complete"
	frameActionError    = "action.error"
)

// frameHeader is the first-pass decode of any inbound frame
type frameHeader struct {
	Type string `json:"type"`
}

// Inbound frame payloads

type authFrame struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId,omitempty"`
}

type threadCreateFrame struct {
	ProjectHint string `json:"projectHint,omitempty"`
}

type threadListFrame struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type threadLoadFrame struct {
	ThreadID string `json:"threadId"`
}

type threadMessageFrame struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
	LLM      string `json:"llm,omitempty"`
}

type threadCloseFrame struct {
	ThreadID string `json:"threadId"`
	Archive  bool   `json:"archive,omitempty"`
}

type actionConfirmFrame struct {
	ActionID  string `json:"actionId"`
	Confirmed bool   `json:"confirmed"`
}

type actionCancelFrame struct {
	ActionID string `json:"actionId"`
}

// Outbound frames

type authSuccessFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type errorFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId,omitempty"`
	Error    string `json:"error"`
}

type threadCreatedFrame struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	ProjectHint string `json:"projectHint,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type threadSummary struct {
	ID          string `json:"id"`
	ProjectHint string `json:"projectHint,omitempty"`
	Title       string `json:"title,omitempty"`
	Archived    bool   `json:"archived,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type threadListResponseFrame struct {
	Type    string          `json:"type"`
	Threads []threadSummary `json:"threads"`
}

type messagePayload struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type threadLoadedFrame struct {
	Type        string           `json:"type"`
	ID          string           `json:"id"`
	ProjectHint string           `json:"projectHint,omitempty"`
	Messages    []messagePayload `json:"messages"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
}

type threadDeletedFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
}

type streamStartFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	ActionID string `json:"actionId"`
}

type streamChunkFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

type streamStepFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	Step     string `json:"step"`
}

type streamEndFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
}

type actionConfirmRequestFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	ActionID string `json:"actionId"`
	Prompt   string `json:"prompt"`
}

type actionCompleteFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	ActionID string `json:"actionId"`
	Result   string `json:"result"`
}

type actionErrorFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	ActionID string `json:"actionId"`
	Error    string `json:"error"`
}

// wireTime formats a timestamp the way every frame carries it
func wireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func newErrorFrame(threadID, message string) errorFrame {
	return errorFrame{Type: frameError, ThreadID: threadID, Error: message}
}

func summarizeThreads(threads []store.Thread) []threadSummary {
	summaries := make([]threadSummary, 0, len(threads))
	for _, t := range threads {
		summaries = append(summaries, threadSummary{
			ID:          t.ID,
			ProjectHint: t.ProjectHint,
			Title:       t.Title,
			Archived:    t.Archived,
			CreatedAt:   wireTime(t.CreatedAt),
			UpdatedAt:   wireTime(t.UpdatedAt),
		})
	}
	return summaries
}

func payloadFromMessages(messages []store.Message) []messagePayload {
	payload := make([]messagePayload, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, messagePayload{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: wireTime(m.CreatedAt),
		})
	}
	return payload
}
