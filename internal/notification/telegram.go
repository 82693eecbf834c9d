package notification

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramNotifier sends alerts via the Telegram Bot API.
type TelegramNotifier struct {
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
}

// NewTelegramNotifier creates a Telegram notifier for chatID. An empty
// endpoint uses the public Bot API.
func NewTelegramNotifier(token string, chatID int64, endpoint string, log *zap.Logger) (*TelegramNotifier, error) {
	if endpoint == "" {
		endpoint = tgbot.APIEndpoint
	}
	bot, err := tgbot.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

func (t *TelegramNotifier) Send(_ context.Context, alert Alert) error {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	msg := tgbot.NewMessage(t.chatID, formatTelegram(emoji, alert))
	msg.ParseMode = tgbot.ModeMarkdownV2
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	t.log.Debug("telegram alert sent", zap.String("title", alert.Title))
	return nil
}

func formatTelegram(emoji string, alert Alert) string {
	return fmt.Sprintf("%s *%s*\n\n%s", emoji,
		tgbot.EscapeText(tgbot.ModeMarkdownV2, alert.Title),
		tgbot.EscapeText(tgbot.ModeMarkdownV2, alert.Message))
}
