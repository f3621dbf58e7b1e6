package store

import "context"

// Nop is a gateway that persists nothing. Used when persistence is disabled;
// threads live in memory only and fresh loads always miss.
type Nop struct{}

// NewNop creates a no-op gateway
func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) CreateThread(ctx context.Context, t *Thread) (string, error) {
	return t.ID, nil
}

func (n *Nop) ListThreads(ctx context.Context, filter ListFilter) ([]Thread, error) {
	return nil, nil
}

func (n *Nop) GetThread(ctx context.Context, id string) (*Thread, error) {
	return nil, ErrNotFound
}

func (n *Nop) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	return nil, nil
}

func (n *Nop) CreateMessage(ctx context.Context, m *Message) error {
	return nil
}

func (n *Nop) UpdateThread(ctx context.Context, id string, update ThreadUpdate) error {
	return nil
}
