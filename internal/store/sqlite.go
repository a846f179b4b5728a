// Package store persists threads and their messages in SQLite
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"AgentChat/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	last_message TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	role TEXT NOT NULL,
	sender TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	FOREIGN KEY(thread_id) REFERENCES threads(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id);
`

// SQLite stores threads and messages. Message content is kept as JSON so
// every content variant survives a restart unchanged.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates the tables if needed
func New(db *sql.DB, logger *slog.Logger) (*SQLite, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// SaveThread inserts or updates a thread
func (s *SQLite) SaveThread(ctx context.Context, t session.Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, last_message, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_message = excluded.last_message,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count`,
		t.ID, t.Title, t.LastMessage, t.Timestamp.UTC(), t.MessageCount)
	if err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}
	return nil
}

// ListThreads returns every thread, most recently updated first
func (s *SQLite) ListThreads(ctx context.Context) ([]session.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_message, updated_at, message_count
		FROM threads ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []session.Thread
	for rows.Next() {
		var t session.Thread
		if err := rows.Scan(&t.ID, &t.Title, &t.LastMessage, &t.Timestamp, &t.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read threads: %w", err)
	}
	return threads, nil
}

// DeleteThread removes a thread and its messages
func (s *SQLite) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrThreadNotFound
	}
	return tx.Commit()
}

// AppendMessage stores a message at the end of a thread. Unknown threads
// are created with the default title.
func (s *SQLite) AppendMessage(ctx context.Context, threadID string, msg session.Message) error {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to encode message content: %w", err)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, title, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		threadID, session.DefaultThreadTitle, ts.UTC()); err != nil {
		return fmt.Errorf("failed to ensure thread: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (thread_id, role, sender, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		threadID, string(msg.Role), msg.Sender, string(content), ts.UTC()); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}

	s.logger.Debug("stored message", "thread_id", threadID, "role", msg.Role)
	return nil
}

// LoadMessages returns a thread's messages in append order
func (s *SQLite) LoadMessages(ctx context.Context, threadID string) ([]session.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, sender, content, timestamp
		FROM messages WHERE thread_id = ? ORDER BY id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgs []session.Message
	for rows.Next() {
		var (
			m       session.Message
			role    string
			content string
		)
		if err := rows.Scan(&role, &m.Sender, &content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = session.Role(role)
		if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
			// keep the history readable even if one row is damaged
			s.logger.Warn("failed to decode stored content", "thread_id", threadID, "error", err)
			m.Content = session.TextContent(content)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return msgs, nil
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
