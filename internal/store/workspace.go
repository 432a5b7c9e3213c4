package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveWorkspace stores the serialized working state for a session. The
// payload is an opaque JSON document owned by the caller.
func (s *Store) SaveWorkspace(ctx context.Context, sessionID, state string) error {
	if sessionID == "" {
		return errors.New("workspace session id required")
	}
	return s.execWithRetry(ctx, `
		INSERT INTO workspace (session_id, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		sessionID, state, time.Now().UTC().Format(time.RFC3339Nano))
}

// LoadWorkspace returns the serialized working state for a session, or
// empty when none has been saved.
func (s *Store) LoadWorkspace(ctx context.Context, sessionID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM workspace WHERE session_id = ?`, sessionID)
	var state string
	err := row.Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load workspace: %w", err)
	}
	return state, nil
}
