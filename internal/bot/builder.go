package bot

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/conversation"
	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/router"
	"telegram-bot-engine/internal/telegram"
)

// Builder assembles a Bot from straight-line configuration code: routes and
// conversations are registered explicitly at startup, then Build wires the
// router, engine and context together.
type Builder struct {
	name          string
	client        telegram.Client
	store         conversation.Store
	strictCleanup bool
	log           *zerolog.Logger

	routes *router.Router
	defs   []*conversation.Definition
	help   map[string]string
}

func NewBuilder(name string, client telegram.Client) *Builder {
	return &Builder{
		name:   name,
		client: client,
		routes: router.New(),
		help:   make(map[string]string),
	}
}

// WithStore selects the conversation state backend. Defaults to the
// in-memory store.
func (b *Builder) WithStore(store conversation.Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the logger used by the router and engine.
func (b *Builder) WithLogger(logger *zerolog.Logger) *Builder {
	b.log = logger
	return b
}

// StrictCleanup makes message-cleanup failures surface instead of being
// swallowed.
func (b *Builder) StrictCleanup() *Builder {
	b.strictCleanup = true
	return b
}

// Command registers a command handler. The description feeds the Telegram
// command menu when the bot is synced; pass "" to keep it out of the menu.
func (b *Builder) Command(name, description string, h router.Handler) *Builder {
	b.routes.Command(name, h)
	if description != "" {
		b.help[name] = description
	}
	return b
}

// OnText registers a free-text handler.
func (b *Builder) OnText(h router.Handler) *Builder {
	b.routes.OnText(h)
	return b
}

// OnType registers a message-type handler.
func (b *Builder) OnType(t telegram.MessageType, h router.Handler) *Builder {
	b.routes.OnType(t, h)
	return b
}

// Fallback registers the handler of last resort.
func (b *Builder) Fallback(h router.Handler) *Builder {
	b.routes.Fallback(h)
	return b
}

// Conversation registers a dialog definition.
func (b *Builder) Conversation(def *conversation.Definition) *Builder {
	b.defs = append(b.defs, def)
	return b
}

func (b *Builder) Build() (*Bot, error) {
	if b.name == "" {
		return nil, fmt.Errorf("bot: %w: name", domain.ErrMissingSetting)
	}
	if b.client == nil {
		return nil, fmt.Errorf("bot: %q: %w: client", b.name, domain.ErrMissingSetting)
	}
	logger := b.log
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	store := b.store
	if store == nil {
		store = conversation.NewMemoryStore()
	}

	cleaner := telegram.NewMessageCleaner(b.client, b.strictCleanup, logger)
	engine := conversation.NewEngine(store, b.client, cleaner, logger)
	for _, def := range b.defs {
		engine.Register(def)
	}

	commands := make([]telegram.BotCommand, 0, len(b.help))
	for name, description := range b.help {
		commands = append(commands, telegram.BotCommand{Command: name, Description: description})
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Command < commands[j].Command })

	return &Bot{
		name:   b.name,
		client: b.client,
		router: b.routes,
		engine: engine,
		rctx: &router.Context{
			Client:        b.client,
			Conversations: engine,
			Cleaner:       cleaner,
			Log:           logger,
		},
		log:      logger,
		commands: commands,
	}, nil
}
