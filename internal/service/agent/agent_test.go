package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/roostbot/internal/config"
	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/gate"
	"github.com/sandevgo/roostbot/internal/notepad"
	"github.com/sandevgo/roostbot/internal/providers/llm"
	"github.com/sandevgo/roostbot/internal/session"
)

// scriptedProvider plays back canned responses in order, one per call.
type scriptedProvider struct {
	responses []core.ChatResponse
	errs      []error
	calls     int
	requests  []core.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	p.requests = append(p.requests, req)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return core.ChatResponse{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return p.responses[len(p.responses)-1], nil
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req core.ChatRequest, _ func(core.StreamEvent)) (string, error) {
	resp, err := p.Chat(ctx, req)
	return resp.StopReason, err
}

type memStore struct {
	snaps map[string]*session.Snapshot
	saves int
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*session.Snapshot)}
}

func (m *memStore) Load(_ context.Context, chatID string) (*session.Snapshot, error) {
	return m.snaps[chatID], nil
}

func (m *memStore) Save(_ context.Context, snap *session.Snapshot) error {
	m.snaps[snap.ChatID] = snap
	m.saves++
	return nil
}

type collector struct {
	events []core.AgentEvent
}

func (c *collector) emit(ev core.AgentEvent) { c.events = append(c.events, ev) }

func (c *collector) kinds() []core.EventKind {
	out := make([]core.EventKind, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testConfig() *config.AgentConfig {
	return &config.AgentConfig{
		IterationCap:     10,
		CompactThreshold: 20,
		KeepRecent:       8,
	}
}

func textResponse(text string) core.ChatResponse {
	return core.ChatResponse{
		Message:    core.Message{Role: core.RoleAssistant, Content: text},
		StopReason: core.StopEndTurn,
	}
}

func toolResponse(text string, calls ...core.ToolCall) core.ChatResponse {
	return core.ChatResponse{
		Message:    core.Message{Role: core.RoleAssistant, Content: text, ToolCalls: calls},
		StopReason: core.StopToolUse,
	}
}

func TestRun_TextOnlyTurn(t *testing.T) {
	ai := &scriptedProvider{responses: []core.ChatResponse{textResponse("Hello! How can I help?")}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), store, "system prompt")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "hi", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	kinds := c.kinds()
	if len(kinds) != 2 || kinds[0] != core.EventMessage || kinds[1] != core.EventDone {
		t.Fatalf("unexpected event sequence: %v", kinds)
	}
	if !c.events[0].Final {
		t.Error("closing message must be marked final")
	}

	snap := store.snaps["chat-1"]
	if snap == nil {
		t.Fatal("session not persisted")
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("expected user+assistant in transcript, got %d messages", len(snap.Messages))
	}
	if snap.Messages[0].Role != core.RoleUser || snap.Messages[0].Content != "hi" {
		t.Errorf("wrong first message: %+v", snap.Messages[0])
	}
}

func TestRun_NotepadInjectedIntoPrompt(t *testing.T) {
	ai := &scriptedProvider{responses: []core.ChatResponse{textResponse("ok")}}
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), newMemStore(), "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "hi", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	req := ai.requests[0]
	last := req.Messages[len(req.Messages)-1]
	if last.Role != core.RoleUser || !strings.Contains(last.Content, "<notepad>") {
		t.Errorf("notepad not recited after user text: %+v", last)
	}
	if req.System != "sys" {
		t.Errorf("system prompt not passed through: %q", req.System)
	}
}

func TestRun_GateBlocksToolWithoutExecuting(t *testing.T) {
	executed := 0
	search := &fakeHandler{name: "search_listings", handle: func(context.Context, map[string]any, *notepad.Notepad) (any, *notepad.Update, error) {
		executed++
		return map[string]any{"count": 0}, nil, nil
	}}

	gates := gate.NewEvaluator()
	gates.Declare("search_listings", gate.Gate{
		Name:   "location_confirmed",
		Pred:   gate.PathTrue("location.validated"),
		Reason: "No confirmed location yet.",
		Hint:   "Call confirm_location first.",
	})

	ai := &scriptedProvider{responses: []core.ChatResponse{
		toolResponse("Searching...", core.ToolCall{ID: "c1", Name: "search_listings", Input: json.RawMessage(`{}`)}),
		textResponse("I need a location first."),
	}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}, search), gates, store, "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "show me flats", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if executed != 0 {
		t.Fatalf("blocked handler ran %d times", executed)
	}

	var denied *core.AgentEvent
	for i := range c.events {
		if c.events[i].Kind == core.EventToolResult {
			denied = &c.events[i]
		}
	}
	if denied == nil {
		t.Fatal("no tool result event")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(denied.Result), &payload); err != nil {
		t.Fatalf("denial result not JSON: %v", err)
	}
	if payload["gate_blocked"] != true || payload["gate"] != "location_confirmed" {
		t.Errorf("wrong denial payload: %v", payload)
	}
	if !strings.Contains(payload["hint"].(string), "confirm_location") {
		t.Errorf("hint does not name the unblocking tool: %v", payload["hint"])
	}

	// The denial still answers the tool call on the wire.
	second := ai.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if len(last.ToolResults) != 1 || last.ToolResults[0].CallID != "c1" {
		t.Errorf("denial not folded into next request: %+v", last)
	}
	if last.ToolResults[0].IsError {
		t.Error("gate denial must not be an error result")
	}
}

func TestRun_NotepadUpdateVisibleToLaterCallInSameTurn(t *testing.T) {
	confirm := &fakeHandler{name: "confirm_location", handle: func(context.Context, map[string]any, *notepad.Notepad) (any, *notepad.Update, error) {
		return map[string]any{"validated": true},
			&notepad.Update{Location: &notepad.LocationState{City: "Riverside", Validated: true}}, nil
	}}
	var seenValidated bool
	search := &fakeHandler{name: "search_listings", handle: func(_ context.Context, _ map[string]any, pad *notepad.Notepad) (any, *notepad.Update, error) {
		seenValidated = pad.Location.Validated
		return map[string]any{"count": 1}, nil, nil
	}}

	gates := gate.NewEvaluator()
	gates.Declare("search_listings", gate.Gate{
		Name: "location_confirmed",
		Pred: gate.PathTrue("location.validated"),
	})

	ai := &scriptedProvider{responses: []core.ChatResponse{
		toolResponse("",
			core.ToolCall{ID: "c1", Name: "confirm_location", Input: json.RawMessage(`{"city":"Riverside"}`)},
			core.ToolCall{ID: "c2", Name: "search_listings", Input: json.RawMessage(`{}`)},
		),
		textResponse("Found one listing."),
	}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}, confirm, search), gates, store, "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "flats in Riverside", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !seenValidated {
		t.Error("second call did not observe the first call's location update")
	}

	snap := store.snaps["chat-1"]
	if snap == nil || snap.Notepad == nil {
		t.Fatal("snapshot missing")
	}
	if !snap.Notepad.Location.Validated || snap.Notepad.Location.City != "Riverside" {
		t.Errorf("notepad not committed: %+v", snap.Notepad.Location)
	}
}

func TestRun_IterationCapEndsTurn(t *testing.T) {
	noop := &fakeHandler{name: "update_notepad"}
	ai := &scriptedProvider{responses: []core.ChatResponse{
		toolResponse("", core.ToolCall{ID: "c", Name: "update_notepad", Input: json.RawMessage(`{}`)}),
	}}
	cfg := testConfig()
	cfg.IterationCap = 3
	store := newMemStore()
	a := New(cfg, ai, NewExecutor(&fakePages{}, noop), gate.NewEvaluator(), store, "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "loop", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if ai.calls != 3 {
		t.Errorf("expected exactly 3 inference calls, got %d", ai.calls)
	}
	if c.events[len(c.events)-1].Kind != core.EventDone {
		t.Errorf("turn did not finish cleanly: %v", c.kinds())
	}
	if store.saves != 1 {
		t.Errorf("expected one commit, got %d", store.saves)
	}
}

func TestRun_NonRetryableErrorAbortsWithoutCommit(t *testing.T) {
	ai := &scriptedProvider{errs: []error{&llm.APIError{Status: 400, Body: "bad request"}}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), store, "sys")

	var c collector
	err := a.Run(context.Background(), "chat-1", "hi", c.emit)
	if err == nil {
		t.Fatal("expected error")
	}
	if ai.calls != 1 {
		t.Errorf("non-retryable failure retried %d times", ai.calls)
	}
	if store.saves != 0 {
		t.Error("failed turn must not be committed")
	}
	kinds := c.kinds()
	if len(kinds) != 1 || kinds[0] != core.EventError {
		t.Errorf("expected a single error event, got %v", kinds)
	}

	// A later turn starts from the last committed state.
	if snap, _ := store.Load(context.Background(), "chat-1"); snap != nil {
		t.Error("no snapshot should exist after a failed first turn")
	}
}

func TestRun_RetryableErrorRetriesOnce(t *testing.T) {
	ai := &scriptedProvider{
		errs:      []error{&llm.APIError{Status: 529, Body: "overloaded"}},
		responses: []core.ChatResponse{{}, textResponse("recovered")},
	}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), store, "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "hi", c.emit); err != nil {
		t.Fatalf("run failed after retryable error: %v", err)
	}
	if ai.calls != 2 {
		t.Errorf("expected 2 calls, got %d", ai.calls)
	}
	if store.saves != 1 {
		t.Errorf("expected commit after recovery, got %d saves", store.saves)
	}
}

func TestRun_SecondTurnResumesSession(t *testing.T) {
	ai := &scriptedProvider{responses: []core.ChatResponse{textResponse("first"), textResponse("second")}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), store, "sys")

	var c1, c2 collector
	if err := a.Run(context.Background(), "chat-1", "one", c1.emit); err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background(), "chat-1", "two", c2.emit); err != nil {
		t.Fatal(err)
	}

	// The second request replays the first turn's transcript.
	req := ai.requests[1]
	var sawFirst bool
	for _, m := range req.Messages {
		if m.Role == core.RoleAssistant && m.Content == "first" {
			sawFirst = true
		}
	}
	if !sawFirst {
		t.Error("second turn does not carry the first turn's transcript")
	}

	snap := store.snaps["chat-1"]
	if len(snap.Messages) != 4 {
		t.Errorf("expected 4 transcript messages, got %d", len(snap.Messages))
	}
	if c1.events[len(c1.events)-1].SessionID != c2.events[len(c2.events)-1].SessionID {
		t.Error("session id changed across turns")
	}
}

func TestRun_RefsIsolatedAcrossSessions(t *testing.T) {
	pages := &fakePages{pages: make(map[string][]string)}
	search := &fakeHandler{name: "search_listings", handle: func(context.Context, map[string]any, *notepad.Notepad) (any, *notepad.Update, error) {
		pages.pages["s-a"] = []string{"A-1", "A-2", "A-3"}
		return map[string]any{"count": 3}, &notepad.Update{Search: &notepad.SearchHandle{ID: "s-a"}}, nil
	}}
	details := &fakeHandler{name: "get_listing"}

	ai := &scriptedProvider{responses: []core.ChatResponse{
		toolResponse("", core.ToolCall{ID: "c1", Name: "search_listings", Input: json.RawMessage(`{}`)}),
		textResponse("Here are three places."),
		toolResponse("", core.ToolCall{ID: "c2", Name: "get_listing", Input: json.RawMessage(`{"ref":"2"}`)}),
		textResponse("You have not searched yet."),
	}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(pages, search, details), gate.NewEvaluator(), store, "sys")

	var cA, cB collector
	if err := a.Run(context.Background(), "chat-a", "flats please", cA.emit); err != nil {
		t.Fatal(err)
	}
	if err := a.Run(context.Background(), "chat-b", "show me the second one", cB.emit); err != nil {
		t.Fatal(err)
	}

	// The second conversation never searched; another session's page must
	// stay out of reach.
	if details.gotArgs != nil {
		t.Fatalf("handler ran with another session's listing: %v", details.gotArgs)
	}
	var miss string
	for _, ev := range cB.events {
		if ev.Kind == core.EventToolResult {
			miss = ev.Result
		}
	}
	if !strings.Contains(miss, "run a search first") {
		t.Errorf("expected a no-results miss, got: %s", miss)
	}
}

func TestRun_TruncatedToolUseNotCommitted(t *testing.T) {
	ai := &scriptedProvider{responses: []core.ChatResponse{{
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   "Let me check",
			ToolCalls: []core.ToolCall{{ID: "c1", Name: "get_listing", Input: json.RawMessage(`{`)}},
		},
		StopReason: core.StopMaxTokens,
	}, textResponse("second")}}
	store := newMemStore()
	a := New(testConfig(), ai, NewExecutor(&fakePages{}), gate.NewEvaluator(), store, "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "hi", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	snap := store.snaps["chat-1"]
	for _, m := range snap.Messages {
		if len(m.ToolCalls) != 0 {
			t.Fatalf("transcript keeps a tool call that was never answered: %+v", m)
		}
	}

	// The next turn's request must replay a transcript the API accepts.
	if err := a.Run(context.Background(), "chat-1", "again", c.emit); err != nil {
		t.Fatal(err)
	}
	for _, m := range ai.requests[1].Messages {
		if len(m.ToolCalls) != 0 {
			t.Fatalf("replayed request carries an unanswered tool call: %+v", m)
		}
	}
}

func TestRun_MalformedArgsStillReachHandler(t *testing.T) {
	h := &fakeHandler{name: "get_listing", handle: func(_ context.Context, args map[string]any, _ *notepad.Notepad) (any, *notepad.Update, error) {
		if len(args) != 0 {
			return nil, nil, errors.New("expected empty args")
		}
		return nil, nil, errors.New("missing listing_id")
	}}
	ai := &scriptedProvider{responses: []core.ChatResponse{
		toolResponse("", core.ToolCall{ID: "c1", Name: "get_listing", Input: json.RawMessage(`{"listing`)}),
		textResponse("sorry"),
	}}
	a := New(testConfig(), ai, NewExecutor(&fakePages{}, h), gate.NewEvaluator(), newMemStore(), "sys")

	var c collector
	if err := a.Run(context.Background(), "chat-1", "details", c.emit); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, ev := range c.events {
		if ev.Kind == core.EventToolResult && !strings.Contains(ev.Result, "missing listing_id") {
			t.Errorf("handler validation did not drive the result: %s", ev.Result)
		}
	}
}
