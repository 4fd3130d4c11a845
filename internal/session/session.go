// Package session owns the durable transcript and the notepad, renders the
// outbound message list for the inference call, and bounds memory through
// deterministic compaction.
package session

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

type Config struct {
	// CompactThreshold is the message count at which compaction runs.
	CompactThreshold int
	// KeepRecent is how many messages survive a compaction verbatim.
	KeepRecent int
}

func DefaultConfig() Config {
	return Config{
		CompactThreshold: 20,
		KeepRecent:       8,
	}
}

type Session struct {
	ID                string
	ChatID            string
	Notepad           *notepad.Notepad
	Messages          []core.Message
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompactionSummary string
	CompactionCount   int

	cfg Config
}

func New(chatID string, cfg Config) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Notepad:   notepad.New(),
		CreatedAt: now,
		UpdatedAt: now,
		cfg:       cfg,
	}
}

// BuildOutbound renders the wire-ready message list for the next inference
// call: the compaction summary as a synthetic leading exchange, the stored
// transcript split into protocol form, then the new user text with the
// notepad recited after it.
func (s *Session) BuildOutbound(newUserText string) []core.Message {
	var out []core.Message

	if s.CompactionSummary != "" {
		out = append(out,
			core.Message{Role: core.RoleUser, Content: "Recap of our conversation so far:\n" + s.CompactionSummary},
			core.Message{Role: core.RoleAssistant, Content: "Understood, continuing from there."},
		)
	}

	for _, m := range s.Messages {
		if len(m.ToolCalls) == 0 {
			out = append(out, core.Message{Role: m.Role, Content: m.Content})
			continue
		}
		// The protocol requires every tool invocation to be answered
		// before the next assistant turn: the assistant message carries
		// the tool-use blocks, a separate user turn carries the results.
		out = append(out, core.Message{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls})
		if len(m.ToolResults) > 0 {
			out = append(out, core.Message{Role: core.RoleUser, ToolResults: m.ToolResults})
		}
	}

	out = append(out, core.Message{
		Role:    core.RoleUser,
		Content: newUserText + "\n\n" + s.Notepad.Render(),
	})
	return out
}

// Append adds completed-turn messages to the transcript. Messages are
// immutable once appended.
func (s *Session) Append(msgs ...core.Message) {
	now := time.Now().UTC()
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = now
		}
	}
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = now
}

func (s *Session) ShouldCompact() bool {
	return len(s.Messages) >= s.cfg.CompactThreshold
}

// Compact replaces older transcript messages with a derived summary. It is
// deterministic and makes no inference call: the summary reads only the
// notepad plus the literal text of the last two discarded user turns.
// Below the threshold it is a no-op.
func (s *Session) Compact() {
	if !s.ShouldCompact() {
		return
	}

	keep := s.cfg.KeepRecent
	if keep > len(s.Messages) {
		keep = len(s.Messages)
	}
	discarded := s.Messages[:len(s.Messages)-keep]

	s.CompactionSummary = s.buildSummary(discarded)
	s.Messages = append([]core.Message(nil), s.Messages[len(s.Messages)-keep:]...)
	s.CompactionCount++
}

func (s *Session) buildSummary(discarded []core.Message) string {
	var b strings.Builder
	pad := s.Notepad

	if pad.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n", pad.Goal)
	}
	if pad.Location.Validated {
		fmt.Fprintf(&b, "Confirmed location: %s", pad.Location.City)
		if pad.Location.District != "" {
			fmt.Fprintf(&b, " (%s)", pad.Location.District)
		}
		b.WriteString("\n")
	}
	if len(pad.Preferences) > 0 {
		b.WriteString("Preferences: ")
		b.WriteString(renderMap(pad.Preferences))
		b.WriteString("\n")
	}
	if len(pad.UserFacts) > 0 {
		b.WriteString("Known facts: ")
		b.WriteString(renderMap(pad.UserFacts))
		b.WriteString("\n")
	}
	if h := pad.Search; h != nil {
		fmt.Fprintf(&b, "Last search: %d results (page %d of size %d)\n", h.TotalCount, h.Page, h.PageSize)
	}
	if len(pad.Favorites) > 0 {
		fmt.Fprintf(&b, "Saved favorites: %s\n", strings.Join(pad.Favorites, ", "))
	}
	if recent := recentNotes(pad.Notes, 3); len(recent) > 0 {
		fmt.Fprintf(&b, "Notes: %s\n", strings.Join(recent, "; "))
	}

	if turns := lastUserTurns(discarded, 2); len(turns) > 0 {
		b.WriteString("Recent user messages before this recap:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderMap renders a map with sorted keys so the summary stays
// deterministic.
func renderMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}

func recentNotes(notes []string, n int) []string {
	if len(notes) <= n {
		return notes
	}
	return notes[len(notes)-n:]
}

func lastUserTurns(msgs []core.Message, n int) []string {
	var turns []string
	for i := len(msgs) - 1; i >= 0 && len(turns) < n; i-- {
		m := msgs[i]
		if m.Role != core.RoleUser || len(m.ToolResults) > 0 {
			continue
		}
		// Strip the recited notepad; the summary carries live state already.
		text := m.Content
		if idx := strings.Index(text, "<notepad>"); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
		}
		if text != "" {
			turns = append([]string{text}, turns...)
		}
	}
	return turns
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token size of an outbound message list.
// Used for logging and ops visibility; compaction stays count-based.
func EstimateTokens(msgs []core.Message) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})

	total := 0
	for _, m := range msgs {
		text := m.Content
		for _, tc := range m.ToolCalls {
			text += tc.Name + string(tc.Input)
		}
		for _, tr := range m.ToolResults {
			text += tr.Content
		}
		if enc != nil {
			total += len(enc.Encode(text, nil, nil))
		} else {
			total += len(text) / 4
		}
	}
	return total
}
