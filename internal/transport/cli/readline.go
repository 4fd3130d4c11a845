package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/sandevgo/roostbot/internal/config"
	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/service/agent"
	"github.com/sandevgo/roostbot/internal/service/ui"
	"github.com/sandevgo/roostbot/pkg/log"
)

const (
	defaultChatID       = "cli-local"
	defaultDurationUnit = time.Millisecond
)

type ReadLine struct {
	cfg   *config.AppConfig
	agent *agent.Agent
	rl    *readline.Instance
}

func NewReadLine(agent *agent.Agent, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:   cfg,
		agent: agent,
		rl:    rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("ReadLine chat started. Type 'exit' to quit.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		err = r.agent.RunStream(ctx, defaultChatID, line, r.render)
		if err != nil {
			logger.Error().Err(err).Msg("agent run failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		}
	}
}

// render writes agent events to the terminal. Text arrives as streamed
// deltas; the assembled final message is skipped to avoid printing the
// reply twice.
func (r *ReadLine) render(ev core.AgentEvent) {
	out := r.rl.Stdout()

	switch ev.Kind {
	case core.EventMessage:
		if ev.Final {
			fmt.Fprintln(out)
			return
		}
		fmt.Fprint(out, ev.Text)
	case core.EventToolCall:
		fmt.Fprintf(out, "\n%s\n", ui.ToolStyle.Render(fmt.Sprintf("  > %s %s", ev.ToolName, ev.ToolArgs)))
	case core.EventToolResult:
		fmt.Fprintf(out, "%s\n", ui.ToolStyle.Render(fmt.Sprintf("  < %s done in %s", ev.ToolName, ev.Duration.Round(defaultDurationUnit))))
	case core.EventDone:
		fmt.Fprintln(out)
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
