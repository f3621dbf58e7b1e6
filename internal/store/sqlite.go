package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/threadgate/internal/consts"
)

// SQLite is a Gateway backed by a local SQLite database. It is primarily a
// development backend but implements the full gateway contract, so it also
// anchors the persistence round-trip tests.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id           TEXT PRIMARY KEY,
	project_hint TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	archived     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id  TEXT NOT NULL REFERENCES threads(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, seq);
`

// NewSQLite opens (and if needed creates) the database at path
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateThread(ctx context.Context, t *Thread) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, project_hint, title, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectHint, t.Title, boolToInt(t.Archived), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert thread: %w", err)
	}
	return t.ID, nil
}

func (s *SQLite) ListThreads(ctx context.Context, filter ListFilter) ([]Thread, error) {
	query := `SELECT id, project_hint, title, archived, created_at, updated_at FROM threads`
	args := make([]interface{}, 0, 2)

	switch filter.Status {
	case "active":
		query += ` WHERE archived = 0`
	case "archived":
		query += ` WHERE archived = 1`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = consts.DefaultListLimit
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := make([]Thread, 0)
	for rows.Next() {
		var t Thread
		var archived int
		if err := rows.Scan(&t.ID, &t.ProjectHint, &t.Title, &archived, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread row: %w", err)
		}
		t.Archived = archived != 0
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

func (s *SQLite) GetThread(ctx context.Context, id string) (*Thread, error) {
	var t Thread
	var archived int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_hint, title, archived, created_at, updated_at FROM threads WHERE id = ?`,
		id).Scan(&t.ID, &t.ProjectHint, &t.Title, &archived, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", id, err)
	}
	t.Archived = archived != 0
	return &t, nil
}

func (s *SQLite) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, role, content, created_at FROM messages WHERE thread_id = ? ORDER BY seq`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLite) CreateMessage(ctx context.Context, m *Message) error {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (thread_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		m.ThreadID, m.Role, m.Content, created.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, created.UTC(), m.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to bump thread timestamp: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateThread(ctx context.Context, id string, update ThreadUpdate) error {
	query := `UPDATE threads SET updated_at = ?`
	args := []interface{}{time.Now().UTC()}

	if update.Title != nil {
		query += `, title = ?`
		args = append(args, *update.Title)
	}
	if update.Archived != nil {
		query += `, archived = ?`
		args = append(args, boolToInt(*update.Archived))
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update thread %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
