package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/roostbot/internal/config"
	"github.com/sandevgo/roostbot/internal/core"
	"github.com/sandevgo/roostbot/internal/service/agent"
	"github.com/sandevgo/roostbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Bot struct {
	bot     *tele.Bot
	cfg     *config.TelegramConfig
	agent   *agent.Agent
	send    *sender
	ownerID int64
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	agent *agent.Agent,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:     b,
		cfg:     cfg,
		agent:   agent,
		send:    newSender(b),
		ownerID: cfg.OwnerID,
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != bot.ownerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)
	chatID := fmt.Sprintf("telegram-%d", c.Chat().ID)

	// Notify user we are working
	_ = c.Notify(tele.Typing)

	err := b.agent.Run(ctx, chatID, c.Text(), func(ev core.AgentEvent) {
		switch ev.Kind {
		case core.EventMessage:
			if err := b.send.sendMarkdown(ctx, c.Chat(), ev.Text); err != nil {
				logger.Error().Err(err).Msg("failed to send telegram message")
			}
			if !ev.Final {
				_ = c.Notify(tele.Typing)
			}
		case core.EventToolCall:
			_ = c.Notify(tele.Typing)
		}
	})

	if err != nil {
		logger.Error().Err(err).Msg("agent run failed")
		return c.Send(fmt.Sprintf("error: %v", err))
	}

	return nil
}
