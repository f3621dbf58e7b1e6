package engine

import (
	"context"
	"fmt"
	"strings"
)

// Loopback is a development engine used when no external executor is
// configured. It streams the prompt back word by word, and a prompt starting
// with "confirm:" triggers a confirmation round trip before answering, which
// makes the whole suspend/resume path exercisable from a bare client.
type Loopback struct{}

// NewLoopback creates a loopback engine
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Execute(ctx context.Context, req Request, cb Callbacks) (string, error) {
	content := strings.TrimSpace(req.Content)

	if rest, ok := strings.CutPrefix(content, "confirm:"); ok {
		prompt := strings.TrimSpace(rest)
		if prompt == "" {
			prompt = "Proceed?"
		}
		approved, err := cb.Confirm(ctx, prompt)
		if err != nil {
			return "", err
		}
		if !approved {
			return "cancelled", nil
		}
		content = prompt
	}

	if cb.Step != nil {
		cb.Step("echoing")
	}

	for _, word := range strings.Fields(content) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if cb.Chunk != nil {
			cb.Chunk(word + " ")
		}
	}

	return fmt.Sprintf("echo: %s", content), nil
}
