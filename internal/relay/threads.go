package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/threadgate/internal/consts"
	"github.com/codefionn/threadgate/internal/logger"
	"github.com/codefionn/threadgate/internal/store"
)

// pendingAction is a suspended task waiting for a client decision. The
// decision channel has capacity one so resolution never blocks the frame
// handler that delivers it.
type pendingAction struct {
	prompt   string
	decision chan bool
}

// Thread is an in-memory conversation thread. StoreID is empty for threads
// that only exist in memory (persistence failed or is disabled).
type Thread struct {
	ID          string
	StoreID     string
	ProjectHint string
	LLM         string
	CreatedAt   time.Time

	mu        sync.Mutex
	connID    string
	updatedAt time.Time
	messages  []store.Message
	pending   map[string]*pendingAction
	busy      bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newThread(connID, projectHint, llm string) *Thread {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Thread{
		ID:          uuid.NewString(),
		ProjectHint: projectHint,
		LLM:         llm,
		CreatedAt:   now,
		connID:      connID,
		updatedAt:   now,
		messages:    make([]store.Message, 0),
		pending:     make(map[string]*pendingAction),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// appendMessage appends one turn and bumps the thread timestamp. The message
// history is append-only; nothing ever mutates or removes earlier entries.
func (t *Thread) appendMessage(role, content string) store.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := store.Message{
		ThreadID:  t.ID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	t.messages = append(t.messages, msg)
	t.updatedAt = msg.CreatedAt
	return msg
}

// snapshotMessages returns a copy of the message history
func (t *Thread) snapshotMessages() []store.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := make([]store.Message, len(t.messages))
	copy(messages, t.messages)
	return messages
}

// UpdatedAt returns the last-touched timestamp
func (t *Thread) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

func (t *Thread) setConn(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connID = connID
}

// beginRequest marks the thread busy. The protocol allows one active request
// per thread; a second thread.message before stream.end is rejected.
func (t *Thread) beginRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busy {
		return false
	}
	t.busy = true
	return true
}

func (t *Thread) endRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
}

// addPending registers a suspended confirmation keyed by the action id
func (t *Thread) addPending(actionID, prompt string) *pendingAction {
	t.mu.Lock()
	defer t.mu.Unlock()

	pa := &pendingAction{
		prompt:   prompt,
		decision: make(chan bool, 1),
	}
	t.pending[actionID] = pa
	return pa
}

// resolvePending delivers a decision to a suspended task. The entry is
// removed before delivery, so a second resolution of the same action id
// finds nothing and is a no-op.
func (t *Thread) resolvePending(actionID string, approved bool) bool {
	t.mu.Lock()
	pa, ok := t.pending[actionID]
	if ok {
		delete(t.pending, actionID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	pa.decision <- approved
	return true
}

// awaitDecision blocks the calling task until the action is resolved or the
// thread is torn down. Teardown counts as "cancelled" (false). No registry
// lock is held here; only the requesting task waits.
func (t *Thread) awaitDecision(ctx context.Context, pa *pendingAction) (bool, error) {
	select {
	case approved := <-pa.decision:
		return approved, nil
	case <-t.ctx.Done():
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// teardown cancels the thread context, unblocking any suspended
// confirmation with "cancelled", and clears the pending table.
func (t *Thread) teardown() {
	t.cancel()

	t.mu.Lock()
	n := len(t.pending)
	t.pending = make(map[string]*pendingAction)
	t.mu.Unlock()

	if n > 0 {
		logger.Info("Thread %s closed with %d pending action(s), resolved as cancelled", t.ID, n)
	}
}

// ThreadStore owns the process-wide map of resident threads
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	gateway store.Gateway
}

// NewThreadStore creates a thread store backed by the given gateway
func NewThreadStore(gateway store.Gateway) *ThreadStore {
	if gateway == nil {
		gateway = store.NewNop()
	}
	return &ThreadStore{
		threads: make(map[string]*Thread),
		gateway: gateway,
	}
}

// Create builds a new thread, mirrors it to the store best-effort and makes
// it resident. Persistence failure leaves the thread usable in-memory-only.
// The gateway call happens before the map insert, never under the lock.
func (ts *ThreadStore) Create(ctx context.Context, connID, projectHint string) *Thread {
	t := newThread(connID, projectHint, "")

	persistCtx, cancel := context.WithTimeout(ctx, consts.Timeout5Seconds)
	storeID, err := ts.gateway.CreateThread(persistCtx, &store.Thread{
		ID:          t.ID,
		ProjectHint: projectHint,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.CreatedAt,
	})
	cancel()
	if err != nil {
		logger.Warn("Thread %s not persisted, continuing in-memory: %v", t.ID, err)
	} else {
		t.StoreID = storeID
	}

	ts.mu.Lock()
	ts.threads[t.ID] = t
	ts.mu.Unlock()

	logger.Info("Thread %s created by connection %s", t.ID, connID)
	return t
}

// Get returns a resident thread
func (ts *ThreadStore) Get(id string) (*Thread, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.threads[id]
	return t, ok
}

// Count returns the number of resident threads
func (ts *ThreadStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.threads)
}

// List delegates to the persistence gateway. A gateway failure degrades to
// an empty list rather than erroring the socket.
func (ts *ThreadStore) List(ctx context.Context, status string, limit int) []store.Thread {
	listCtx, cancel := context.WithTimeout(ctx, consts.Timeout5Seconds)
	defer cancel()

	threads, err := ts.gateway.ListThreads(listCtx, store.ListFilter{Status: status, Limit: limit})
	if err != nil {
		logger.Warn("Thread list unavailable: %v", err)
		return nil
	}
	return threads
}

// Load returns the resident thread, or hydrates one from the store. The
// caller becomes the owning connection. A store miss (or a store failure,
// which is indistinguishable to the client) is a not-found.
func (ts *ThreadStore) Load(ctx context.Context, connID, threadID string) (*Thread, error) {
	if t, ok := ts.Get(threadID); ok {
		t.setConn(connID)
		return t, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, consts.Timeout5Seconds)
	defer cancel()

	st, err := ts.gateway.GetThread(loadCtx, threadID)
	if err != nil {
		return nil, err
	}
	messages, err := ts.gateway.ListMessages(loadCtx, threadID)
	if err != nil {
		return nil, err
	}

	t := newThread(connID, st.ProjectHint, "")
	t.ID = st.ID
	t.StoreID = st.ID
	t.CreatedAt = st.CreatedAt
	t.mu.Lock()
	t.updatedAt = st.UpdatedAt
	t.messages = messages
	t.mu.Unlock()

	ts.mu.Lock()
	// Another connection may have hydrated the same thread concurrently;
	// the first one in wins and the duplicate is discarded.
	if existing, ok := ts.threads[t.ID]; ok {
		ts.mu.Unlock()
		t.cancel()
		existing.setConn(connID)
		return existing, nil
	}
	ts.threads[t.ID] = t
	ts.mu.Unlock()

	logger.Info("Thread %s hydrated from store (%d messages)", t.ID, len(messages))
	return t, nil
}

// Close evicts a thread from memory, resolving outstanding confirmations as
// cancelled. With archive set, the store is told to mark the thread archived
// (best-effort; message history there is retained). Closing an unknown id
// reports false but is not an error.
func (ts *ThreadStore) Close(ctx context.Context, threadID string, archive bool) bool {
	ts.mu.Lock()
	t, ok := ts.threads[threadID]
	if ok {
		delete(ts.threads, threadID)
	}
	ts.mu.Unlock()

	if !ok {
		return false
	}

	t.teardown()

	if archive && t.StoreID != "" {
		archiveCtx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
		defer cancel()
		archived := true
		if err := ts.gateway.UpdateThread(archiveCtx, t.StoreID, store.ThreadUpdate{Archived: &archived}); err != nil {
			logger.Warn("Failed to archive thread %s in store: %v", t.ID, err)
		}
	}

	logger.Info("Thread %s closed (archive=%v)", threadID, archive)
	return true
}

// Resolve finds the thread holding the given action id and delivers the
// decision. Action ids are process-wide unique, so the first match wins.
// An unknown id is a benign race (already resolved, or thread closed) and
// resolves to a silent no-op.
func (ts *ThreadStore) Resolve(actionID string, approved bool) bool {
	ts.mu.RLock()
	threads := make([]*Thread, 0, len(ts.threads))
	for _, t := range ts.threads {
		threads = append(threads, t)
	}
	ts.mu.RUnlock()

	for _, t := range threads {
		if t.resolvePending(actionID, approved) {
			logger.Debug("Action %s resolved on thread %s: approved=%v", actionID, t.ID, approved)
			return true
		}
	}
	return false
}

// persistMessage mirrors a message to the store best-effort. Threads that
// were never persisted have no store record to attach messages to, so they
// are skipped outright.
func (ts *ThreadStore) persistMessage(t *Thread, msg store.Message) {
	if t.StoreID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()

	stored := msg
	stored.ThreadID = t.StoreID
	if err := ts.gateway.CreateMessage(ctx, &stored); err != nil {
		logger.Warn("Failed to persist %s message on thread %s: %v", msg.Role, t.ID, err)
	}
}

// updateTitle mirrors the thread title to the store best-effort
func (ts *ThreadStore) updateTitle(t *Thread, title string) {
	if t.StoreID == "" || title == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()

	if err := ts.gateway.UpdateThread(ctx, t.StoreID, store.ThreadUpdate{Title: &title}); err != nil {
		logger.Warn("Failed to update title for thread %s: %v", t.ID, err)
	}
}
