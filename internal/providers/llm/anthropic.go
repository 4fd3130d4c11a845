package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sandevgo/roostbot/internal/core"
)

const (
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 4096
)

type Anthropic struct {
	baseProvider
	maxTokens int
}

func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		baseProvider: newBaseProvider("https://api.anthropic.com", apiKey, model),
		maxTokens:    defaultMaxTokens,
	}
}

// wire shapes for the Messages API

type wireBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func (a *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
		"User-Agent":        core.RoostUserAgent,
	}
}

func (a *Anthropic) payload(req core.ChatRequest, stream bool) map[string]any {
	messages := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, toWire(m))
	}

	payload := map[string]any{
		"model":      a.model,
		"max_tokens": a.maxTokens,
		"messages":   messages,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if len(req.Tools) > 0 {
		tools := make([]wireTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		payload["tools"] = tools
	}
	if stream {
		payload["stream"] = true
	}
	return payload
}

func toWire(m core.Message) wireMessage {
	var blocks []wireBlock
	if len(m.ToolResults) > 0 {
		for _, tr := range m.ToolResults {
			blocks = append(blocks, wireBlock{
				Type:      "tool_result",
				ToolUseID: tr.CallID,
				Content:   tr.Content,
				IsError:   tr.IsError,
			})
		}
		return wireMessage{Role: core.RoleUser, Content: blocks}
	}

	if m.Content != "" {
		blocks = append(blocks, wireBlock{Type: "text", Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		input := tc.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, wireBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
	}
	return wireMessage{Role: m.Role, Content: blocks}
}

func (a *Anthropic) Chat(ctx context.Context, req core.ChatRequest) (core.ChatResponse, error) {
	resp, err := a.doRequest(ctx, http.MethodPost, "/v1/messages", a.payload(req, false), a.headers())
	if err != nil {
		return core.ChatResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ChatResponse{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.ChatResponse{}, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	var result struct {
		Content    []wireBlock `json:"content"`
		StopReason string      `json:"stop_reason"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.ChatResponse{}, fmt.Errorf("decode: %w", err)
	}

	msg := core.Message{Role: core.RoleAssistant}
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			msg.Content += block.Text
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{ID: block.ID, Name: block.Name, Input: input})
		}
	}

	return core.ChatResponse{Message: msg, StopReason: result.StopReason}, nil
}
