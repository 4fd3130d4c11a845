package session

import (
	"context"
	"time"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

// Snapshot is the only artifact that crosses the persistence boundary.
type Snapshot struct {
	SessionID         string           `json:"session_id"`
	ChatID            string           `json:"chat_id"`
	Notepad           *notepad.Notepad `json:"notepad"`
	Messages          []core.Message   `json:"messages"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CompactionSummary string           `json:"compaction_summary,omitempty"`
	CompactionCount   int              `json:"compaction_count"`
}

func (s *Session) ToSnapshot() *Snapshot {
	return &Snapshot{
		SessionID:         s.ID,
		ChatID:            s.ChatID,
		Notepad:           s.Notepad.Clone(),
		Messages:          append([]core.Message(nil), s.Messages...),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		CompactionSummary: s.CompactionSummary,
		CompactionCount:   s.CompactionCount,
	}
}

func FromSnapshot(snap *Snapshot, cfg Config) *Session {
	pad := snap.Notepad
	if pad == nil {
		pad = notepad.New()
	}
	return &Session{
		ID:                snap.SessionID,
		ChatID:            snap.ChatID,
		Notepad:           pad.Clone(),
		Messages:          append([]core.Message(nil), snap.Messages...),
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
		CompactionSummary: snap.CompactionSummary,
		CompactionCount:   snap.CompactionCount,
		cfg:               cfg,
	}
}

// Store persists session snapshots keyed by chat id. Load returns nil when
// no session exists yet.
type Store interface {
	Load(ctx context.Context, chatID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}
