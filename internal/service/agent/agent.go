// Package agent runs the conversational turn loop: it builds the outbound
// prompt through the session, calls the inference endpoint under the retry
// policy, routes every tool-use block through the gate evaluator and the
// executor, and commits the completed turn to durable session state.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sandevgo/roostbot/internal/config"
	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/gate"
	"github.com/sandevgo/roostbot/internal/notepad"
	"github.com/sandevgo/roostbot/internal/providers/llm"
	"github.com/sandevgo/roostbot/internal/session"
	"github.com/sandevgo/roostbot/pkg/log"
	"github.com/sandevgo/roostbot/pkg/retry"
)

type Agent struct {
	cfg     *config.AgentConfig
	ai      core.AIProvider
	exec    *Executor
	gates   *gate.Evaluator
	store   session.Store
	retrier *retry.Retrier
	system  string
}

func New(
	cfg *config.AgentConfig,
	ai core.AIProvider,
	exec *Executor,
	gates *gate.Evaluator,
	store session.Store,
	systemPrompt string,
) *Agent {
	return &Agent{
		cfg:     cfg,
		ai:      ai,
		exec:    exec,
		gates:   gates,
		store:   store,
		retrier: retry.NewDefaultRetrier(),
		system:  systemPrompt,
	}
}

// stepResult is one model response, normalized across the block and
// streaming call paths.
type stepResult struct {
	resp core.ChatResponse
	// badCalls marks call ids whose streamed arguments failed to parse in
	// strict mode; they get an error result without execution.
	badCalls map[string]bool
	// streamed is true when the text already went out as deltas.
	streamed bool
}

type callFunc func(ctx context.Context, msgs []core.Message) (stepResult, error)

// Run executes one turn block-at-a-time.
func (a *Agent) Run(ctx context.Context, chatID, input string, emit core.EmitFunc) error {
	return a.run(ctx, chatID, input, emit, a.callModel)
}

func (a *Agent) run(ctx context.Context, chatID, input string, emit core.EmitFunc, call callFunc) error {
	logger := log.FromCtx(ctx)

	sess, err := a.loadSession(ctx, chatID)
	if err != nil {
		emit(core.AgentEvent{Kind: core.EventError, Err: err.Error()})
		return err
	}

	if sess.ShouldCompact() {
		sess.Compact()
		logger.Info().Int("compactions", sess.CompactionCount).
			Int("kept", len(sess.Messages)).Msg("compacted session transcript")
	}

	// The turn works on a clone. Notepad mutations commit together with
	// the message append at the end; a failed or cancelled turn discards
	// both, so the session never sees a half-applied turn.
	pad := sess.Notepad.Clone()
	outbound := sess.BuildOutbound(input)
	logger.Debug().Int("messages", len(outbound)).
		Int("tokens_est", session.EstimateTokens(outbound)).Msg("built outbound prompt")

	turn := []core.Message{{Role: core.RoleUser, Content: input}}

	for iter := 0; iter < a.cfg.IterationCap; iter++ {
		step, err := call(ctx, outbound)
		if err != nil {
			emit(core.AgentEvent{Kind: core.EventError, Err: err.Error()})
			return err
		}

		asst := step.resp.Message
		asst.Role = core.RoleAssistant

		if len(asst.ToolCalls) == 0 || step.resp.StopReason != core.StopToolUse {
			// A truncated response can still carry tool-use blocks. They
			// will never be answered, and an unanswered tool call in the
			// transcript makes every later request invalid.
			asst.ToolCalls = nil
			turn = append(turn, asst)
			if asst.Content != "" {
				emit(core.AgentEvent{Kind: core.EventMessage, Text: asst.Content, Final: true})
			}
			break
		}

		if asst.Content != "" && !step.streamed {
			emit(core.AgentEvent{Kind: core.EventMessage, Text: asst.Content})
		}

		// Tool calls run strictly in received order, one at a time, so a
		// later call observes the notepad updates of an earlier one.
		results := make([]core.ToolResult, 0, len(asst.ToolCalls))
		for _, tc := range asst.ToolCalls {
			args := ParseArgs(tc.Input)
			emit(core.AgentEvent{Kind: core.EventToolCall, CallID: tc.ID, ToolName: tc.Name, ToolArgs: tc.Input})

			start := time.Now()
			var res core.ToolResult
			var upd *notepad.Update
			switch {
			case step.badCalls[tc.ID]:
				res = errorResult(tc, "tool arguments could not be parsed")
			default:
				if d := a.gates.Check(tc.Name, pad, args); !d.Allowed {
					res = deniedResult(tc, d)
					logger.Debug().Str("tool", tc.Name).Str("gate", d.Gate).Msg("tool call blocked by gate")
				} else {
					logger.Info().Str("tool", tc.Name).Msg("executing tool")
					res, upd = a.exec.Execute(ctx, tc, args, pad)
				}
			}
			pad.Apply(upd)

			emit(core.AgentEvent{
				Kind: core.EventToolResult, CallID: tc.ID, ToolName: tc.Name,
				Result: res.Content, Duration: time.Since(start),
			})
			results = append(results, res)
		}

		asst.ToolResults = results
		turn = append(turn, asst)
		outbound = append(outbound,
			core.Message{Role: core.RoleAssistant, Content: asst.Content, ToolCalls: asst.ToolCalls},
			core.Message{Role: core.RoleUser, ToolResults: results},
		)
	}

	sess.Notepad = pad
	sess.Append(turn...)
	if err := a.store.Save(ctx, sess.ToSnapshot()); err != nil {
		logger.Error().Err(err).Msg("failed to persist session snapshot")
	}

	emit(core.AgentEvent{Kind: core.EventDone, SessionID: sess.ID})
	return nil
}

func (a *Agent) loadSession(ctx context.Context, chatID string) (*session.Session, error) {
	scfg := session.Config{
		CompactThreshold: a.cfg.CompactThreshold,
		KeepRecent:       a.cfg.KeepRecent,
	}
	snap, err := a.store.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return session.New(chatID, scfg), nil
	}
	return session.FromSnapshot(snap, scfg), nil
}

func (a *Agent) callModel(ctx context.Context, msgs []core.Message) (stepResult, error) {
	req := core.ChatRequest{System: a.system, Messages: msgs, Tools: a.exec.Tools()}

	var resp core.ChatResponse
	err := a.retrier.Do(ctx, func() error {
		r, err := a.ai.Chat(ctx, req)
		if err != nil {
			return classify(err)
		}
		resp = r
		return nil
	})
	return stepResult{resp: resp}, err
}

// classify marks non-retryable inference failures as permanent so the
// retrier gives up immediately.
func classify(err error) error {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return retry.Permanent(err)
	}
	return err
}

// deniedResult converts a gate denial into an ordinary tool result so the
// model can self-correct within the same turn.
func deniedResult(call core.ToolCall, d gate.Decision) core.ToolResult {
	content, _ := json.Marshal(map[string]any{
		"gate_blocked": true,
		"gate":         d.Gate,
		"reason":       d.Reason,
		"hint":         d.Hint,
	})
	return core.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
	}
}
