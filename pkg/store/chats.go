package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChatRow is the persisted shape of a chat. The conversation itself lives
// in History as a JSON document (`{"messages": {<id>: {...}, ...}}`, a
// mapping from message id to message, per spec §3), matching the
// original Open-WebUI-compatible storage model — one JSON blob per chat
// row, not a normalized message table, the same technique the teacher's
// SQLTaskService uses for artifacts/history (task_service_sql.go).
type ChatRow struct {
	ID          string
	OwnerEmail  string
	AssistantID int64
	Title       string
	History     []byte // JSON: {"messages": {<id>: {...}, ...}}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateChatIfNotExists inserts a chat row keyed by a client-supplied id,
// doing nothing if the row already exists. This is the idempotency
// primitive testable property 6 depends on: concurrent callers racing to
// create the same chat_id never produce a second row, because the
// dialect-native "insert or ignore" form makes the second writer's insert
// a no-op rather than a unique-constraint error.
func (s *Store) CreateChatIfNotExists(ctx context.Context, id, ownerEmail string, assistantID int64, title string) error {
	now := time.Now().UTC()

	var query string
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO chats (id, owner_email, assistant_id, title, history, created_at, updated_at)
VALUES (?, ?, ?, ?, '{"messages":{}}', ?, ?)
ON CONFLICT (id) DO NOTHING`
	case "mysql":
		query = `
INSERT IGNORE INTO chats (id, owner_email, assistant_id, title, history, created_at, updated_at)
VALUES (?, ?, ?, ?, '{"messages":{}}', ?, ?)`
	default: // sqlite
		query = `
INSERT OR IGNORE INTO chats (id, owner_email, assistant_id, title, history, created_at, updated_at)
VALUES (?, ?, ?, ?, '{"messages":{}}', ?, ?)`
	}

	if _, err := s.exec(ctx, query, id, ownerEmail, assistantID, title, now, now); err != nil {
		return fmt.Errorf("create chat %q: %w", id, err)
	}
	return nil
}

// GetChat loads a chat row by id.
func (s *Store) GetChat(ctx context.Context, id string) (*ChatRow, error) {
	row := s.queryRow(ctx, `
SELECT id, owner_email, assistant_id, title, history, created_at, updated_at
FROM chats WHERE id = ?`, id)

	var c ChatRow
	var history string
	if err := row.Scan(&c.ID, &c.OwnerEmail, &c.AssistantID, &c.Title, &history, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query chat %q: %w", id, err)
	}
	c.History = []byte(history)
	return &c, nil
}

// UpdateChatHistory replaces a chat's history document and bumps
// updated_at. Concurrency policy is last-writer-wins (spec §4.8): callers
// read-modify-write the JSON document themselves; the store does not
// attempt a server-side merge.
func (s *Store) UpdateChatHistory(ctx context.Context, id string, history []byte) error {
	_, err := s.exec(ctx, `UPDATE chats SET history = ?, updated_at = ? WHERE id = ?`,
		string(history), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update chat %q history: %w", id, err)
	}
	return nil
}

// ListChatsForOwner lists a user's chats newest-first, for the
// supplemented chat-listing feature (SPEC_FULL.md §12 item 4).
func (s *Store) ListChatsForOwner(ctx context.Context, ownerEmail string) ([]*ChatRow, error) {
	rows, err := s.query(ctx, `
SELECT id, owner_email, assistant_id, title, history, created_at, updated_at
FROM chats WHERE owner_email = ? ORDER BY updated_at DESC`, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("list chats for %q: %w", ownerEmail, err)
	}
	defer rows.Close()

	var out []*ChatRow
	for rows.Next() {
		var c ChatRow
		var history string
		if err := rows.Scan(&c.ID, &c.OwnerEmail, &c.AssistantID, &c.Title, &history, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		c.History = []byte(history)
		out = append(out, &c)
	}
	return out, rows.Err()
}
