package core

import (
	"encoding/json"
	"time"
)

const (
	RoostName          = "RoostBot"
	RoostUserAgent     = "RoostBot-Agent/0.1"
	RoostRepositoryURL = "https://github.com/sandevgo/roostbot"
	RoostVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons reported by the inference endpoint.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"` // JSON Schema
}

type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResult struct {
	CallID  string `json:"tool_use_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one transcript entry. Tool calls and their results are paired
// 1:1 by call id on the assistant message that requested them; the wire
// translation splits them into separate turns.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"timestamp,omitempty"`
}
