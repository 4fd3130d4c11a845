package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/pkg/retry"
)

// RunStream executes one turn over the streaming inference call. Text
// deltas reach the caller as they arrive; the turn machine is otherwise
// identical to Run.
func (a *Agent) RunStream(ctx context.Context, chatID, input string, emit core.EmitFunc) error {
	return a.run(ctx, chatID, input, emit, func(ctx context.Context, msgs []core.Message) (stepResult, error) {
		return a.callModelStream(ctx, msgs, emit)
	})
}

func (a *Agent) callModelStream(ctx context.Context, msgs []core.Message, emit core.EmitFunc) (stepResult, error) {
	req := core.ChatRequest{System: a.system, Messages: msgs, Tools: a.exec.Tools()}

	var step stepResult
	err := a.retrier.Do(ctx, func() error {
		asm := newStreamAssembler()
		delivered := false

		stop, err := a.ai.ChatStream(ctx, req, func(ev core.StreamEvent) {
			delivered = true
			if ev.Kind == core.StreamTextDelta {
				emit(core.AgentEvent{Kind: core.EventMessage, Text: ev.Text})
			}
			asm.feed(ev)
		})
		if err != nil {
			// A partially delivered stream cannot be replayed without
			// duplicating output; only retry failures before first byte.
			if delivered {
				return retry.Permanent(err)
			}
			return classify(err)
		}

		msg, badCalls := asm.message(a.cfg.StrictStreamArgs)
		step = stepResult{
			resp:     core.ChatResponse{Message: msg, StopReason: stop},
			badCalls: badCalls,
			streamed: true,
		}
		return nil
	})
	return step, err
}

// streamAssembler folds the event stream back into a message. Tool
// arguments arrive as JSON fragments buffered per block and parsed only
// once the block closes.
type streamAssembler struct {
	text   strings.Builder
	order  []int
	blocks map[int]*toolBlock
}

type toolBlock struct {
	callID string
	name   string
	args   strings.Builder
	bad    bool
}

func newStreamAssembler() *streamAssembler {
	return &streamAssembler{blocks: make(map[int]*toolBlock)}
}

func (s *streamAssembler) feed(ev core.StreamEvent) {
	switch ev.Kind {
	case core.StreamTextDelta:
		s.text.WriteString(ev.Text)
	case core.StreamToolStart:
		s.blocks[ev.Index] = &toolBlock{callID: ev.CallID, name: ev.ToolName}
		s.order = append(s.order, ev.Index)
	case core.StreamToolDelta:
		if b, ok := s.blocks[ev.Index]; ok {
			b.args.WriteString(ev.PartialJSON)
		}
	case core.StreamToolStop:
		if b, ok := s.blocks[ev.Index]; ok {
			raw := strings.TrimSpace(b.args.String())
			if raw != "" && !json.Valid([]byte(raw)) {
				// An unparsable fragment degrades to an empty-arguments
				// call; strict mode turns it into an error result later.
				b.bad = true
			}
		}
	}
}

func (s *streamAssembler) message(strict bool) (core.Message, map[string]bool) {
	msg := core.Message{Role: core.RoleAssistant, Content: s.text.String()}
	badCalls := make(map[string]bool)

	for _, idx := range s.order {
		b := s.blocks[idx]
		input := strings.TrimSpace(b.args.String())
		if input == "" || b.bad {
			input = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, core.ToolCall{
			ID:    b.callID,
			Name:  b.name,
			Input: json.RawMessage(input),
		})
		if b.bad && strict {
			badCalls[b.callID] = true
		}
	}
	return msg, badCalls
}
