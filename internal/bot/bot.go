// Package bot ties one Telegram identity to its router and conversation
// engine and exposes the single entry point ingestion adapters call.
package bot

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/conversation"
	"telegram-bot-engine/internal/router"
	"telegram-bot-engine/internal/telegram"
)

// Bot handles updates for one bot identity. An update goes to the
// conversation engine first; only when no dialog claims it does the router
// dispatch it.
type Bot struct {
	name   string
	client telegram.Client
	router *router.Router
	engine *conversation.Engine
	rctx   *router.Context
	log    *zerolog.Logger

	commands []telegram.BotCommand
}

// Commands returns the described commands, for publishing the menu.
func (b *Bot) Commands() []telegram.BotCommand {
	return b.commands
}

// Name returns the registry name of the bot.
func (b *Bot) Name() string {
	return b.name
}

// Client exposes the outbound client, e.g. for the poll adapter.
func (b *Bot) Client() telegram.Client {
	return b.client
}

// Conversations exposes the dialog engine.
func (b *Bot) Conversations() *conversation.Engine {
	return b.engine
}

// Handle routes one update and reports whether anything handled it.
// Callers must serialize updates per chat id; updates for different chats
// may be handled concurrently.
func (b *Bot) Handle(ctx context.Context, upd *telegram.Update) bool {
	if b.engine != nil && b.engine.Handle(ctx, upd) {
		return true
	}
	return b.router.Dispatch(ctx, upd, b.rctx)
}
