package core

import (
	"context"
	"encoding/json"

	"github.com/sandevgo/roostbot/internal/notepad"
)

// Handler is one domain tool. Handlers read the notepad but never mutate it;
// state changes travel back as a notepad.Update and are applied by the agent.
type Handler interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Handle(ctx context.Context, args map[string]any, pad *notepad.Notepad) (any, *notepad.Update, error)
}
