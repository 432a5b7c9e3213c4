package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MessageRecord is the persistence shape of one chat turn.
type MessageRecord struct {
	ID          string
	SessionID   string
	Role        string
	Content     string
	Attachments string // JSON-encoded artifact list, empty when absent
	CreatedAt   time.Time
}

// AppendMessage stores one chat turn. Messages are append-only; sequence
// order is assigned by the database and follows insertion order.
func (s *Store) AppendMessage(ctx context.Context, record MessageRecord) error {
	if record.ID == "" {
		return errors.New("message id required")
	}
	if record.SessionID == "" {
		return errors.New("message session id required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return s.execWithRetry(ctx, `
		INSERT INTO messages (id, session_id, role, content, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Role, record.Content,
		record.Attachments, record.CreatedAt.Format(time.RFC3339Nano))
}

// ListMessages returns all turns for a session in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, attachments, created_at
		FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []MessageRecord
	for rows.Next() {
		var record MessageRecord
		var createdAt string
		if err := rows.Scan(&record.ID, &record.SessionID, &record.Role, &record.Content, &record.Attachments, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.CreatedAt = parseTime(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}

// MessageCount returns the number of stored turns for a session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
