// Package notepad holds the structured conversation state that must survive
// transcript compaction. It is injected into the prompt every turn, so the
// model keeps seeing it even after old messages are discarded.
package notepad

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

type LocationState struct {
	City      string  `json:"city,omitempty"`
	District  string  `json:"district,omitempty"`
	Lat       float64 `json:"lat,omitempty"`
	Lon       float64 `json:"lon,omitempty"`
	RadiusKM  float64 `json:"radius_km,omitempty"`
	Matched   int     `json:"matched,omitempty"`
	Validated bool    `json:"validated"`
}

// SearchHandle points at an externally stored result page. The full result
// set is never kept inline.
type SearchHandle struct {
	ID         string            `json:"id"`
	TotalCount int               `json:"total_count"`
	PageSize   int               `json:"page_size"`
	Page       int               `json:"page"`
	Filters    map[string]string `json:"filters,omitempty"`
	ExecutedAt time.Time         `json:"executed_at"`
}

// AgentFields is the partial update the model may apply to its own half of
// the notepad. Nil pointers leave the field untouched.
type AgentFields struct {
	Goal        *string
	Preferences map[string]string
	NextStep    *string
	// Notes keeps an inherited dual semantic: a string appends one note, a
	// []string replaces the whole list.
	Notes any
}

// Update is the single tagged value every tool hands back. Duck-typed
// handler payloads are normalized into this at the executor boundary so
// nothing downstream branches on shape.
type Update struct {
	Location  *LocationState
	Search    *SearchHandle
	Favorites []string
	Facts     map[string]string
	Agent     *AgentFields
}

type Notepad struct {
	// Backend-owned: mutated only through the tool-execution path.
	Location  LocationState     `json:"location"`
	Search    *SearchHandle     `json:"search,omitempty"`
	Favorites []string          `json:"favorites,omitempty"`
	UserFacts map[string]string `json:"user_facts,omitempty"`

	// Agent-owned: mutated only through the dedicated update path.
	Goal        string            `json:"goal,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	NextStep    string            `json:"next_step,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
}

func New() *Notepad {
	return &Notepad{}
}

// Apply routes an update to the owning path. Backend fields and agent fields
// never cross-write.
func (n *Notepad) Apply(u *Update) {
	if u == nil {
		return
	}
	n.applyBackend(u)
	if u.Agent != nil {
		n.applyAgent(u.Agent)
	}
}

func (n *Notepad) applyBackend(u *Update) {
	if u.Location != nil {
		n.Location = *u.Location
	}
	if u.Search != nil {
		s := *u.Search
		n.Search = &s
	}
	for _, id := range u.Favorites {
		n.AddFavorite(id)
	}
	for k, v := range u.Facts {
		if n.UserFacts == nil {
			n.UserFacts = make(map[string]string)
		}
		n.UserFacts[k] = v
	}
}

func (n *Notepad) applyAgent(f *AgentFields) {
	if f.Goal != nil {
		n.Goal = *f.Goal
	}
	for k, v := range f.Preferences {
		if n.Preferences == nil {
			n.Preferences = make(map[string]string)
		}
		n.Preferences[k] = v
	}
	if f.NextStep != nil {
		n.NextStep = *f.NextStep
	}
	switch notes := f.Notes.(type) {
	case nil:
	case string:
		if notes != "" {
			n.Notes = append(n.Notes, notes)
		}
	case []string:
		n.Notes = slices.Clone(notes)
	case []any:
		replaced := make([]string, 0, len(notes))
		for _, item := range notes {
			replaced = append(replaced, fmt.Sprint(item))
		}
		n.Notes = replaced
	}
}

// AddFavorite inserts id into the favorites set. Repeated adds are no-ops.
func (n *Notepad) AddFavorite(id string) {
	if id == "" || slices.Contains(n.Favorites, id) {
		return
	}
	n.Favorites = append(n.Favorites, id)
}

// Render serializes the notepad for prompt injection. Output is
// deterministic: struct field order is fixed and map keys sort on encode.
func (n *Notepad) Render() string {
	view := *n
	view.Favorites = slices.Clone(n.Favorites)
	slices.Sort(view.Favorites)

	data, err := json.MarshalIndent(&view, "", "  ")
	if err != nil {
		// Marshal of a plain struct cannot fail at runtime; keep the
		// envelope shape anyway.
		data = []byte("{}")
	}
	return "<notepad>\n" + string(data) + "\n</notepad>"
}

// Lookup resolves a dotted path ("location.validated", "search.id",
// "user_facts.budget") against the serialized notepad graph.
func (n *Notepad) Lookup(path string) (any, bool) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, false
	}
	var graph map[string]any
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, false
	}

	var cur any = graph
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (n *Notepad) Clone() *Notepad {
	c := *n
	if n.Search != nil {
		s := *n.Search
		s.Filters = cloneMap(n.Search.Filters)
		c.Search = &s
	}
	c.Favorites = slices.Clone(n.Favorites)
	c.Notes = slices.Clone(n.Notes)
	c.UserFacts = cloneMap(n.UserFacts)
	c.Preferences = cloneMap(n.Preferences)
	return &c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
