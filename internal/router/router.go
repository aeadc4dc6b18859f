// Package router dispatches inbound updates to registered handlers without
// looking at conversation state. Dispatch order: command match, then
// free-text handlers, then message-type handlers, then the fallback.
package router

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/telegram"
)

// ConversationStarter lets command handlers kick off a dialog without the
// router depending on the conversation package.
type ConversationStarter interface {
	Start(ctx context.Context, name string, upd *telegram.Update) bool
}

// Context is handed to every handler alongside the update.
type Context struct {
	Client        telegram.Client
	Conversations ConversationStarter
	Cleaner       *telegram.MessageCleaner
	Log           *zerolog.Logger
}

// Reply sends a plain text message to the update's chat. It is a no-op for
// updates without a chat id.
func (c *Context) Reply(ctx context.Context, upd *telegram.Update, text string) error {
	chatID, ok := upd.ChatID()
	if !ok {
		return nil
	}
	_, err := c.Client.SendMessage(ctx, chatID, text, nil)
	return err
}

// Handler processes one update. Errors are logged by the router; they do
// not affect the handled/unhandled outcome.
type Handler func(ctx context.Context, upd *telegram.Update, rc *Context) error

// Router holds the registration table. Command and fallback slots are
// singular (last registration wins); text and type handlers accumulate and
// run in registration order.
type Router struct {
	commands     map[string]Handler
	textHandlers []Handler
	typeHandlers map[telegram.MessageType][]Handler
	fallback     Handler
}

func New() *Router {
	return &Router{
		commands:     make(map[string]Handler),
		typeHandlers: make(map[telegram.MessageType][]Handler),
	}
}

// Command registers a handler for "/name".
func (r *Router) Command(name string, h Handler) *Router {
	r.commands[name] = h
	return r
}

// OnText registers a handler for free-text messages that match no command.
func (r *Router) OnText(h Handler) *Router {
	r.textHandlers = append(r.textHandlers, h)
	return r
}

// OnType registers a handler for a message type.
func (r *Router) OnType(t telegram.MessageType, h Handler) *Router {
	r.typeHandlers[t] = append(r.typeHandlers[t], h)
	return r
}

// Fallback registers the handler of last resort.
func (r *Router) Fallback(h Handler) *Router {
	r.fallback = h
	return r
}

// Dispatch routes one update. It invokes at most one matching handler set
// and reports whether anything handled the update.
func (r *Router) Dispatch(ctx context.Context, upd *telegram.Update, rc *Context) bool {
	if text := upd.Text(); text != "" {
		if name, ok := ParseCommand(text); ok {
			if h, ok := r.commands[name]; ok {
				r.invoke(ctx, upd, rc, h, "command "+name)
				return true
			}
		}
		if len(r.textHandlers) > 0 {
			for _, h := range r.textHandlers {
				r.invoke(ctx, upd, rc, h, "text")
			}
			return true
		}
	}

	if handlers := r.typeHandlers[upd.Type()]; len(handlers) > 0 {
		for _, h := range handlers {
			r.invoke(ctx, upd, rc, h, string(upd.Type()))
		}
		return true
	}

	if r.fallback != nil {
		r.invoke(ctx, upd, rc, r.fallback, "fallback")
		return true
	}

	return false
}

func (r *Router) invoke(ctx context.Context, upd *telegram.Update, rc *Context, h Handler, slot string) {
	if err := h(ctx, upd, rc); err != nil && rc.Log != nil {
		rc.Log.Error().Err(err).Str("slot", slot).Msg("handler failed")
	}
}

// ParseCommand extracts the leading command token from a message text.
// "/start@mybot extra" resolves to "start"; a bare "/" or text without a
// leading slash resolves to no command.
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text[0] != '/' {
		return "", false
	}
	token := text
	if i := strings.IndexByte(token, ' '); i >= 0 {
		token = token[:i]
	}
	token = strings.TrimLeft(token, "/")
	if token == "" {
		return "", false
	}
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", false
	}
	return token, true
}
