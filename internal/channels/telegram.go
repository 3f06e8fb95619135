package channels

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"

	"github.com/grigta/sentinel/internal/models"
)

// TelegramChannel delivers alerts to an operators chat.
type TelegramChannel struct {
	bot    *bot.Bot
	chatID int64
}

func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram channel is not configured: token is required")
	}

	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{bot: b, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, alert *models.Alert) error {
	text := fmt.Sprintf("%s *%s*\n%s\n\n_type: %s, severity: %s_",
		severityEmoji(alert.Severity), escapeMarkdown(alert.Title), escapeMarkdown(alert.Message),
		escapeMarkdown(alert.Type), alert.Severity)

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    c.chatID,
		Text:      text,
		ParseMode: botmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	return nil
}

func severityEmoji(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return "🚨"
	case models.SeverityHigh:
		return "⚠️"
	case models.SeverityMedium:
		return "🔶"
	default:
		return "ℹ️"
	}
}

func escapeMarkdown(s string) string {
	return bot.EscapeMarkdown(s)
}
