package core

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventMessage    EventKind = "message"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// AgentEvent is what the turn loop emits to the caller. Ordering matches
// the loop's internal transitions.
type AgentEvent struct {
	Kind EventKind

	// EventMessage
	Text  string
	Final bool

	// EventToolCall / EventToolResult
	CallID   string
	ToolName string
	ToolArgs json.RawMessage
	Result   string
	Duration time.Duration

	// EventDone
	SessionID string

	// EventError
	Err string
}

type EmitFunc func(AgentEvent)
