package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chainarb/core/internal/types"
)

// TelegramSink sends every terminal ExecutionResult to one or more
// Telegram chats, adapted from a TelegramAlerter shape: same bot-API
// client and multi-chat fan-out, reworked to the
// Opportunity/ExecutionResult domain and the "one notification per
// execution" framing of spec.md §7 rather than a generic Alert.
type TelegramSink struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramSink builds a TelegramSink from a bot token and the chat IDs
// to notify.
func NewTelegramSink(botToken string, chatIDs []int64) (*TelegramSink, error) {
	if botToken == "" {
		return nil, fmt.Errorf("notify: telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: create telegram bot: %w", err)
	}
	return &TelegramSink{api: api, chatIDs: chatIDs}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, result types.ExecutionResult, opp types.Opportunity) error {
	if len(s.chatIDs) == 0 {
		return nil
	}
	text := formatMessage(result, opp)

	var lastErr error
	sent := 0
	for _, chatID := range s.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = "Markdown"
		if _, err := s.api.Send(msg); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return fmt.Errorf("notify: telegram send failed for all chats: %w", lastErr)
	}
	return nil
}

func formatMessage(result types.ExecutionResult, opp types.Opportunity) string {
	emoji := "✅"
	if !result.Success {
		emoji = "⚠️"
	}
	return fmt.Sprintf("%s *%s* `%s`\n%s\nchain: %s  elapsed: %s",
		emoji, opp.Kind, result.OpportunityID, Summary(result), opp.Chain, result.Elapsed)
}
