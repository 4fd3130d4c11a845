package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/roostbot/internal/config"
	"github.com/sandevgo/roostbot/internal/gate"
	"github.com/sandevgo/roostbot/internal/providers/llm"
	"github.com/sandevgo/roostbot/internal/service/agent"
	"github.com/sandevgo/roostbot/internal/storage/sqlite"
	"github.com/sandevgo/roostbot/internal/tools"
	"github.com/sandevgo/roostbot/internal/transport/cli"
	"github.com/sandevgo/roostbot/internal/transport/telegram"
	"github.com/sandevgo/roostbot/pkg/log"
	"github.com/sandevgo/roostbot/pkg/srv"
)

const defaultSystemPrompt = `You are Roost, a real-estate assistant. You help people find, compare, and save property listings, and you connect serious buyers with an agent.

Keep replies short and conversational. Use your tools for every factual claim about listings; never invent listings or prices. Confirm the location before searching. When the user refers to a result by position ("the second one"), pass that reference to the tool as-is.`

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	err := initEnv(ctx, config.GetRuntimePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	agentCfg := config.NewAgentConfig(ctx)
	aiCfg := config.NewAnthropicConfig(ctx)

	// 2. Storage
	db, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	sessions := sqlite.NewSessionsRepo(db)
	listings := sqlite.NewListingsRepo(db)
	searches := sqlite.NewSearchesRepo(db)
	leads := sqlite.NewLeadsRepo(db)

	// 3. AI Provider
	aiProvider := llm.NewAnthropic(aiCfg.APIKey, aiCfg.Model)

	// 4. Tools & gates
	executor := agent.NewExecutor(
		searches,
		tools.NewConfirmLocation(listings),
		tools.NewSearchListings(listings, searches),
		tools.NewGetListing(listings),
		tools.NewEstimateValue(listings),
		tools.NewSaveFavorite(listings),
		tools.NewCaptureLead(leads),
		tools.NewUpdateNotepad(),
	)
	gates := gate.NewEvaluator()
	tools.DeclareGates(gates)

	// 5. Agent Service
	ag := agent.New(
		agentCfg,
		aiProvider,
		executor,
		gates,
		sessions,
		loadSystemPrompt(ctx, appCfg),
	)

	// 6. Transports
	transports, err := initTransports(ctx, appCfg, ag)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, error) {
	if err := os.MkdirAll(cfg.GetRuntimePath(), 0755); err != nil {
		return nil, err
	}
	return sqlite.NewDB(ctx, cfg.GetDatabasePath())
}

func initTransports(ctx context.Context, cfg *config.AppConfig, ag *agent.Agent) ([]srv.Service, error) {
	var services []srv.Service

	// Telegram Bot
	if cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, ag)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	// Interactive terminal chat
	if cfg.EnableCLI {
		rl, err := cli.NewReadLine(ag, cfg)
		if err != nil {
			return nil, err
		}
		services = append(services, rl)
	}

	return services, nil
}

// loadSystemPrompt prefers the operator-managed SYSTEM.md in the runtime
// directory and falls back to the built-in prompt.
func loadSystemPrompt(ctx context.Context, cfg *config.AppConfig) string {
	data, err := os.ReadFile(cfg.GetSystemPromptPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to read system prompt file")
		}
		return defaultSystemPrompt
	}
	return string(data)
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
