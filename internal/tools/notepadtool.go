package tools

import (
	"context"
	"encoding/json"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

const updateNotepadSchema = `
{
  "type": "object",
  "properties": {
    "goal": { "type": "string", "description": "What the user is trying to accomplish" },
    "preferences": { "type": "object", "description": "Preference key/value pairs to merge" },
    "next_step": { "type": "string", "description": "What you plan to do next" },
    "notes": { "description": "A string appends one note; a list replaces all notes" }
  }
}
`

// UpdateNotepad is the only path through which the model edits its own half
// of the notepad. Backend fields are not reachable from here.
type UpdateNotepad struct{}

func NewUpdateNotepad() *UpdateNotepad { return &UpdateNotepad{} }

func (u *UpdateNotepad) Name() string { return "update_notepad" }

func (u *UpdateNotepad) Description() string {
	return "Update your working notes: goal, preferences, next step and free-form notes."
}

func (u *UpdateNotepad) Schema() json.RawMessage {
	return json.RawMessage(updateNotepadSchema)
}

func (u *UpdateNotepad) Handle(_ context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
	fields := &notepad.AgentFields{}
	changed := []string{}

	if goal, ok := args["goal"].(string); ok {
		fields.Goal = &goal
		changed = append(changed, "goal")
	}
	if prefs, ok := args["preferences"].(map[string]any); ok {
		fields.Preferences = make(map[string]string, len(prefs))
		for k, v := range prefs {
			if s, ok := v.(string); ok {
				fields.Preferences[k] = s
			}
		}
		changed = append(changed, "preferences")
	}
	if next, ok := args["next_step"].(string); ok {
		fields.NextStep = &next
		changed = append(changed, "next_step")
	}
	if notes, ok := args["notes"]; ok {
		fields.Notes = notes
		changed = append(changed, "notes")
	}

	result := map[string]any{"updated": changed}
	return result, &notepad.Update{Agent: fields}, nil
}

var _ core.Handler = (*UpdateNotepad)(nil)
