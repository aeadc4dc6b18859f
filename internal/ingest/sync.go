package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/telegram"
)

// BotManager is the management surface needed to sync a bot with Telegram.
// *telegram.BotClient satisfies it; test fakes usually do not, in which
// case Sync is a no-op.
type BotManager interface {
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
}

// Sync publishes the bot's command menu and points Telegram at the webhook
// URL, or clears the webhook when the bot runs on long polling instead.
func Sync(ctx context.Context, b *bot.Bot, webhookURL string, logger *zerolog.Logger) error {
	mgr, ok := b.Client().(BotManager)
	if !ok {
		logger.Debug().Str("bot", b.Name()).Msg("client has no management surface, skipping sync")
		return nil
	}

	if commands := b.Commands(); len(commands) > 0 {
		if err := mgr.SetMyCommands(ctx, commands); err != nil {
			return fmt.Errorf("ingest: sync commands for %q: %w", b.Name(), err)
		}
		logger.Info().Str("bot", b.Name()).Int("commands", len(commands)).Msg("command menu synced")
	}

	if webhookURL != "" {
		if err := mgr.SetWebhook(ctx, webhookURL); err != nil {
			return fmt.Errorf("ingest: set webhook for %q: %w", b.Name(), err)
		}
		logger.Info().Str("bot", b.Name()).Str("url", webhookURL).Msg("webhook set")
		return nil
	}

	if err := mgr.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("ingest: delete webhook for %q: %w", b.Name(), err)
	}
	logger.Info().Str("bot", b.Name()).Msg("webhook cleared, long polling active")
	return nil
}
