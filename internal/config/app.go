package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/roostbot/pkg/log"
)

// GetRuntimePath reads the runtime directory before the .env file is
// loaded, so the bootstrap can find the .env file itself.
func GetRuntimePath() string {
	if p := os.Getenv("ROOSTBOT_RUNTIME_PATH"); p != "" {
		return p
	}
	return ".roostbot"
}

type AppConfig struct {
	RuntimePath string `env:"ROOSTBOT_RUNTIME_PATH" envDefault:".roostbot"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"true"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetSystemPromptPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "roostbot.db")
}
