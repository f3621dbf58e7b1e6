// Package engine defines the task execution capability consumed by the relay
// server. The real executor lives in a separate service; the server only
// depends on this interface and on the callback contract below.
package engine

import "context"

// Request describes one task execution triggered by a thread.message frame
type Request struct {
	ThreadID    string
	ProjectHint string
	Model       string
	Content     string
}

// Callbacks receive incremental output while a task runs. All callbacks are
// invoked from the engine's goroutine, in order; none may be called after
// Execute returns.
type Callbacks struct {
	// Chunk delivers a piece of streamed output text
	Chunk func(text string)

	// Step delivers a status-line update ("reading files", "running tests")
	Step func(step string)

	// Confirm asks the user a yes/no question and blocks until answered.
	// It returns false with a nil error when the user declines or the
	// thread is torn down while waiting.
	Confirm func(ctx context.Context, prompt string) (bool, error)
}

// Engine executes a user request, streaming progress through the callbacks.
// The returned string is the final result; when it is empty, callers fall
// back to the concatenated chunks.
type Engine interface {
	Execute(ctx context.Context, req Request, cb Callbacks) (string, error)
}
