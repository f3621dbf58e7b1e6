package relay

import (
	"context"
	"strings"

	"github.com/codefionn/threadgate/internal/consts"
	"github.com/codefionn/threadgate/internal/engine"
	"github.com/codefionn/threadgate/internal/logger"
	"github.com/codefionn/threadgate/internal/store"
)

// StreamingBridge turns engine callbacks into outbound frames and inbound
// confirmation frames into the resolution of a suspended task. One run
// handles one thread.message request end to end.
type StreamingBridge struct {
	engine       engine.Engine
	threads      *ThreadStore
	defaultModel string
}

// NewStreamingBridge creates a bridge over the given engine and thread store.
// defaultModel is used when a message frame carries no llm override.
func NewStreamingBridge(eng engine.Engine, threads *ThreadStore, defaultModel string) *StreamingBridge {
	return &StreamingBridge{
		engine:       eng,
		threads:      threads,
		defaultModel: defaultModel,
	}
}

// run executes one request. The caller has already appended the user message
// in memory, marked the thread busy and emitted stream.start; run owns the
// rest of the request lifecycle, including endRequest.
//
// Per-request states: Started -> Streaming -> (AwaitingConfirmation <->
// Streaming)* -> Completed | Failed. Exactly one terminal frame pair is
// emitted per request.
func (b *StreamingBridge) run(c *Client, t *Thread, actionID string, userMsg threadMessageFrame, appended store.Message) {
	defer t.endRequest()

	b.threads.persistMessage(t, appended)

	var buf strings.Builder

	callbacks := engine.Callbacks{
		Chunk: func(text string) {
			buf.WriteString(text)
			c.Send(streamChunkFrame{Type: frameStreamChunk, ThreadID: t.ID, Text: text})
		},
		Step: func(step string) {
			c.Send(streamStepFrame{Type: frameStreamStep, ThreadID: t.ID, Step: step})
		},
		Confirm: func(ctx context.Context, prompt string) (bool, error) {
			pa := t.addPending(actionID, prompt)
			c.Send(actionConfirmRequestFrame{
				Type:     frameActionConfirm,
				ThreadID: t.ID,
				ActionID: actionID,
				Prompt:   prompt,
			})
			logger.Debug("Action %s awaiting confirmation on thread %s", actionID, t.ID)
			return t.awaitDecision(ctx, pa)
		},
	}

	model := userMsg.LLM
	if model == "" {
		model = b.defaultModel
	}

	result, err := b.engine.Execute(t.ctx, engine.Request{
		ThreadID:    t.ID,
		ProjectHint: t.ProjectHint,
		Model:       model,
		Content:     userMsg.Content,
	}, callbacks)

	if err != nil {
		logger.Error("Task failed on thread %s: %v", t.ID, err)
		msg := t.appendMessage("system", err.Error())
		b.threads.persistMessage(t, msg)
		c.Send(actionErrorFrame{Type: frameActionError, ThreadID: t.ID, ActionID: actionID, Error: err.Error()})
		c.Send(streamEndFrame{Type: frameStreamEnd, ThreadID: t.ID})
		return
	}

	if result == "" {
		result = buf.String()
	}

	msg := t.appendMessage("assistant", result)
	b.threads.persistMessage(t, msg)
	b.threads.updateTitle(t, titleFromPrompt(userMsg.Content))

	c.Send(streamEndFrame{Type: frameStreamEnd, ThreadID: t.ID})
	c.Send(actionCompleteFrame{Type: frameActionComplete, ThreadID: t.ID, ActionID: actionID, Result: result})
}

// titleFromPrompt derives a store title from the user message that started
// the task, capped to the title length limit on a rune boundary.
func titleFromPrompt(content string) string {
	title := strings.TrimSpace(content)
	if line, _, ok := strings.Cut(title, "\n"); ok {
		title = strings.TrimSpace(line)
	}

	runes := []rune(title)
	if len(runes) > consts.ThreadTitleMaxLen {
		title = string(runes[:consts.ThreadTitleMaxLen])
	}
	return title
}
