package core

import "context"

type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []Tool
}

type ChatResponse struct {
	// Message carries the assistant text and tool-use blocks in the order
	// the model produced them.
	Message    Message
	StopReason string
}

// StreamEvent is one incremental event from a streamed inference call.
type StreamEvent struct {
	Kind StreamEventKind
	// Index identifies the content block the event belongs to.
	Index int
	// Text is the delta for text blocks.
	Text string
	// CallID and ToolName are set on StreamToolStart.
	CallID   string
	ToolName string
	// PartialJSON is an argument fragment for tool-use blocks.
	PartialJSON string
}

type StreamEventKind string

const (
	StreamTextDelta StreamEventKind = "text_delta"
	StreamToolStart StreamEventKind = "tool_start"
	StreamToolDelta StreamEventKind = "tool_delta"
	StreamToolStop  StreamEventKind = "tool_stop"
)

type AIProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream delivers events in arrival order and returns the final
	// stop reason once the stream closes. Block assembly is the caller's
	// concern.
	ChatStream(ctx context.Context, req ChatRequest, onEvent func(StreamEvent)) (string, error)
}
