package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/notepad"
)

// PageLoader reads back the ordered listing ids of a stored result page.
type PageLoader interface {
	LoadPage(ctx context.Context, searchID string) ([]string, error)
}

// Executor is the uniform execution surface over the registered domain
// tools. Every failure mode at this boundary becomes a structured error
// result; the model cannot be trusted to request only declared tools, and
// one failing tool must never abort an otherwise-healthy turn.
//
// The executor itself holds no per-conversation state. References like
// "the second one" resolve against the result page named by the session's
// own search handle, read back from storage, so sessions stay isolated and
// references survive a restart.
type Executor struct {
	handlers map[string]core.Handler
	pages    PageLoader
}

func NewExecutor(pages PageLoader, handlers ...core.Handler) *Executor {
	e := &Executor{
		handlers: make(map[string]core.Handler, len(handlers)),
		pages:    pages,
	}
	for _, h := range handlers {
		e.handlers[h.Name()] = h
	}
	return e
}

// Tools returns the declared tool schemas in stable name order.
func (e *Executor) Tools() []core.Tool {
	tools := make([]core.Tool, 0, len(e.handlers))
	for _, h := range e.handlers {
		tools = append(tools, core.Tool{
			Name:        h.Name(),
			Description: h.Description(),
			InputSchema: h.Schema(),
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ParseArgs decodes tool-call input. Anything undecodable degrades to empty
// arguments; the handler's own validation takes it from there.
func ParseArgs(raw json.RawMessage) map[string]any {
	args := make(map[string]any)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	return args
}

// Execute dispatches one tool call. The returned update, if any, is the
// caller's to apply.
func (e *Executor) Execute(ctx context.Context, call core.ToolCall, args map[string]any, pad *notepad.Notepad) (res core.ToolResult, upd *notepad.Update) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(call, fmt.Sprintf("tool %s failed: %v", call.Name, r))
			upd = nil
		}
	}()

	handler, ok := e.handlers[call.Name]
	if !ok {
		return errorResult(call, fmt.Sprintf("unknown tool %q", call.Name)), nil
	}

	if ref, hasRef := args["ref"]; hasRef {
		id, err := e.resolve(ctx, pad, ref)
		if err != nil {
			return errorResult(call, err.Error()), nil
		}
		delete(args, "ref")
		args["listing_id"] = id
	}

	payload, update, err := handler.Handle(ctx, args, pad)
	if err != nil {
		return errorResult(call, err.Error()), nil
	}

	return core.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: truncate(encodePayload(payload)),
	}, update
}

// resolve maps a human reference to a listing id on this session's current
// result page. A fresh search replaces the notepad's handle wholesale, so
// earlier pages become unreachable the moment it lands.
func (e *Executor) resolve(ctx context.Context, pad *notepad.Notepad, ref any) (string, error) {
	if pad.Search == nil {
		return "", fmt.Errorf("there are no search results to refer to; run a search first")
	}
	ids, err := e.pages.LoadPage(ctx, pad.Search.ID)
	if err != nil {
		return "", fmt.Errorf("could not read the current result page: %v", err)
	}
	return resolveRef(ids, ref)
}

func errorResult(call core.ToolCall, msg string) core.ToolResult {
	content, _ := json.Marshal(map[string]string{"error": msg})
	return core.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
		IsError: true,
	}
}

func encodePayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "{}"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func truncate(input string) string {
	const maxLen = 2000
	if len(input) <= maxLen {
		return input
	}

	head := input[:500]
	tail := input[len(input)-(maxLen-500):]
	return fmt.Sprintf("%s\n\n... [TRUNCATED %d bytes] ...\n\n%s", head, len(input)-maxLen, tail)
}
