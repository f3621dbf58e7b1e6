// Package store provides the persistence gateway for threads and messages.
//
// Every call may fail: the server treats the store as best-effort and keeps
// serving from memory when it is unreachable. The one exception is loading a
// thread that is not resident in memory, where a missing record is a hard
// not-found.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread does not exist in the store
var ErrNotFound = errors.New("thread not found")

// Thread is the persisted form of a conversation thread
type Thread struct {
	ID          string    `json:"id"`
	ProjectHint string    `json:"project_hint,omitempty"`
	Title       string    `json:"title,omitempty"`
	Archived    bool      `json:"archived,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one persisted conversation turn
type Message struct {
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows a ListThreads call
type ListFilter struct {
	// Status filters by lifecycle state: "active", "archived" or "" for all
	Status string
	// Limit caps the number of returned threads; 0 means the store default
	Limit int
}

// ThreadUpdate carries a partial thread update; nil fields are left untouched
type ThreadUpdate struct {
	Title    *string
	Archived *bool
}

// Gateway is the persistence capability consumed by the relay server.
type Gateway interface {
	// CreateThread persists a new thread and returns the store's identifier
	// for it (which may differ from the in-memory id).
	CreateThread(ctx context.Context, t *Thread) (string, error)

	// ListThreads returns thread summaries matching the filter, newest first.
	ListThreads(ctx context.Context, filter ListFilter) ([]Thread, error)

	// GetThread returns a thread by store id, or ErrNotFound.
	GetThread(ctx context.Context, id string) (*Thread, error)

	// ListMessages returns the thread's messages in creation order.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)

	// CreateMessage appends a message to a thread.
	CreateMessage(ctx context.Context, m *Message) error

	// UpdateThread applies a partial update to a thread.
	UpdateThread(ctx context.Context, id string, update ThreadUpdate) error
}
