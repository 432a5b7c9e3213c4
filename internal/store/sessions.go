package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRecord is the persistence shape of a session. Orchestrator packages
// convert to and from their own types.
type SessionRecord struct {
	ID                  string
	Stage               string
	HasDocument         bool
	HasRequirements     bool
	NeedsClarification  bool
	ReadyForChat        bool
	RequirementsSkipped bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SaveSession inserts or updates a session record.
func (s *Store) SaveSession(ctx context.Context, record SessionRecord) error {
	if record.ID == "" {
		return errors.New("session id required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	return s.execWithRetry(ctx, `
		INSERT INTO sessions (id, stage, has_document, has_requirements, needs_clarification, ready_for_chat, requirements_skipped, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stage = excluded.stage,
			has_document = excluded.has_document,
			has_requirements = excluded.has_requirements,
			needs_clarification = excluded.needs_clarification,
			ready_for_chat = excluded.ready_for_chat,
			requirements_skipped = excluded.requirements_skipped,
			updated_at = excluded.updated_at`,
		record.ID, record.Stage,
		boolToInt(record.HasDocument), boolToInt(record.HasRequirements),
		boolToInt(record.NeedsClarification), boolToInt(record.ReadyForChat),
		boolToInt(record.RequirementsSkipped),
		record.CreatedAt.Format(time.RFC3339Nano), record.UpdatedAt.Format(time.RFC3339Nano))
}

// CurrentSession returns the most recently updated session, or nil when none
// has been created yet.
func (s *Store) CurrentSession(ctx context.Context) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, stage, has_document, has_requirements, needs_clarification, ready_for_chat, requirements_skipped, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT 1`)

	var record SessionRecord
	var hasDoc, hasReq, clarify, ready, skipped int
	var createdAt, updatedAt string
	err := row.Scan(&record.ID, &record.Stage, &hasDoc, &hasReq, &clarify, &ready, &skipped, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	record.HasDocument = hasDoc != 0
	record.HasRequirements = hasReq != 0
	record.NeedsClarification = clarify != 0
	record.ReadyForChat = ready != 0
	record.RequirementsSkipped = skipped != 0
	record.CreatedAt = parseTime(createdAt)
	record.UpdatedAt = parseTime(updatedAt)
	return &record, nil
}

// DeleteSession removes a session and, via cascade, its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("session id required")
	}
	return s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
