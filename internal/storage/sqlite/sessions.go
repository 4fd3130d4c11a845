package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sandevgo/roostbot/internal/session"
)

// SessionsRepo persists session snapshots as JSON keyed by chat id.
type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Load(ctx context.Context, chatID string) (*session.Snapshot, error) {
	var raw string
	query := `SELECT snapshot FROM sessions WHERE chat_id = ?`
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &snap, nil
}

func (r *SessionsRepo) Save(ctx context.Context, snap *session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	query := `INSERT INTO sessions (chat_id, session_id, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			session_id = excluded.session_id,
			snapshot   = excluded.snapshot,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query, snap.ChatID, snap.SessionID, string(raw), snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

var _ session.Store = (*SessionsRepo)(nil)
