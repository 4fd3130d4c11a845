package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/roostbot/pkg/log"
)

type AgentConfig struct {
	// IterationCap bounds tool-use round trips within one turn. Hitting
	// the cap ends the turn without an error.
	IterationCap int `env:"AGENT_ITERATION_CAP" envDefault:"10"`

	// Transcript compaction
	CompactThreshold int `env:"AGENT_COMPACT_THRESHOLD" envDefault:"20"`
	KeepRecent       int `env:"AGENT_KEEP_RECENT" envDefault:"8"`

	// StrictStreamArgs surfaces unparsable streamed tool arguments as a
	// tool-level error instead of degrading to an empty-arguments call.
	StrictStreamArgs bool `env:"AGENT_STRICT_STREAM_ARGS" envDefault:"false"`
}

func NewAgentConfig(ctx context.Context) *AgentConfig {
	c := &AgentConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Agent config")
	}
	return c
}
