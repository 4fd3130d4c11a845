package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/roostbot/internal/core"
)

// sseEvent mirrors the streaming Messages API event envelope. Only the
// fields the loop consumes are decoded.
type sseEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`

	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`

	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

// ChatStream issues a streamed inference call and forwards decoded events
// in arrival order. It returns the final stop reason; assembling blocks out
// of the deltas is the caller's job.
func (a *Anthropic) ChatStream(ctx context.Context, req core.ChatRequest, onEvent func(core.StreamEvent)) (string, error) {
	resp, err := a.doRequest(ctx, http.MethodPost, "/v1/messages", a.payload(req, true), a.headers())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	return decodeStream(ctx, resp.Body, onEvent)
}

func decodeStream(ctx context.Context, body io.Reader, onEvent func(core.StreamEvent)) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var stopReason string
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Skip frames we cannot decode; the terminal message_stop
			// still closes the stream.
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				onEvent(core.StreamEvent{
					Kind:     core.StreamToolStart,
					Index:    ev.Index,
					CallID:   ev.ContentBlock.ID,
					ToolName: ev.ContentBlock.Name,
				})
			}
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				onEvent(core.StreamEvent{Kind: core.StreamTextDelta, Index: ev.Index, Text: ev.Delta.Text})
			case "input_json_delta":
				onEvent(core.StreamEvent{Kind: core.StreamToolDelta, Index: ev.Index, PartialJSON: ev.Delta.PartialJSON})
			}
		case "content_block_stop":
			onEvent(core.StreamEvent{Kind: core.StreamToolStop, Index: ev.Index})
		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				stopReason = ev.Delta.StopReason
			}
		case "message_stop":
			return stopReason, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return stopReason, nil
}
