package telegram

import (
	"context"
	"strings"

	"github.com/sandevgo/roostbot/pkg/conv"
	"github.com/sandevgo/roostbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

type sender struct {
	bot *tele.Bot
}

func newSender(bot *tele.Bot) *sender {
	return &sender{bot: bot}
}

// sendMarkdown converts Markdown to Telegram HTML and sends it in chunks if needed.
func (s *sender) sendMarkdown(ctx context.Context, to tele.Recipient, md string) error {
	logger := log.FromCtx(ctx)
	html := strings.TrimSpace(conv.MarkdownToTelegramHTML([]byte(md)))
	if html == "" {
		return nil
	}

	chunks := conv.SplitHTML(html, maxTelegramMsgLen)
	for i, chunk := range chunks {
		if _, err := s.bot.Send(to, chunk, tele.ModeHTML); err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}
