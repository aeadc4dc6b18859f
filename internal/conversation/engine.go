package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/telegram"
)

// Engine drives multi-step dialogs. It exclusively owns state transitions;
// the Store is a dumb keyed persistence surface. Updates for a single chat
// must be handed to the engine one at a time, in arrival order — the
// ingestion adapter is responsible for that serialization. Different chats
// are independent.
type Engine struct {
	store   Store
	client  telegram.Client
	cleaner *telegram.MessageCleaner
	log     *zerolog.Logger

	mu   sync.RWMutex
	defs map[string]*Definition
}

func NewEngine(store Store, client telegram.Client, cleaner *telegram.MessageCleaner, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		client:  client,
		cleaner: cleaner,
		log:     logger,
		defs:    make(map[string]*Definition),
	}
}

// Register installs a definition under its name. Re-registering a name is an
// atomic replacement: in-flight dialogs resolve the definition by name on
// every update and pick up the replacement from their next step on.
func (e *Engine) Register(def *Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.Name()] = def
}

func (e *Engine) definition(name string) (*Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.defs[name]
	return def, ok
}

// Start begins the named dialog for the update's chat, overwriting any
// prior state for that chat. It reports false when the update carries no
// chat id or the name is not registered.
func (e *Engine) Start(ctx context.Context, name string, upd *telegram.Update) bool {
	chatID, ok := upd.ChatID()
	if !ok {
		return false
	}
	def, ok := e.definition(name)
	if !ok {
		e.log.Warn().Str("conversation", name).Msg("start of unregistered conversation")
		return false
	}

	state := NewState(name, strconv.FormatInt(chatID, 10))
	if err := e.store.Save(ctx, state); err != nil {
		e.log.Error().Err(err).Str("conversation", name).Str("chat_id", state.ChatID).Msg("save conversation state")
		return false
	}

	e.sendPrompt(ctx, def, state)
	return true
}

// Handle feeds one update into the chat's active dialog. It fails closed:
// when no state exists for the chat the update is left for the router.
func (e *Engine) Handle(ctx context.Context, upd *telegram.Update) bool {
	chatID, ok := upd.ChatID()
	if !ok {
		return false
	}
	key := strconv.FormatInt(chatID, 10)

	state, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.log.Error().Err(err).Str("chat_id", key).Msg("load conversation state")
		}
		return false
	}

	def, ok := e.definition(state.Name)
	if !ok {
		// The definition was unregistered while the dialog was in flight.
		e.log.Warn().Str("conversation", state.Name).Str("chat_id", key).Msg("state references unknown conversation")
		return false
	}

	dc := newDialogContext(state, e.client, e.cleaner)

	if e.isCancel(upd, def) {
		e.cancel(ctx, def, dc)
		return true
	}

	step, ok := def.Step(state.StepIndex)
	if !ok {
		// Already past the last step, e.g. the definition shrank.
		e.finish(ctx, def, dc)
		return true
	}

	result := step.Consume(ctx, upd, dc)
	if !result.Accepted {
		if result.Message != "" {
			if err := dc.Send(ctx, result.Message); err != nil {
				e.log.Error().Err(err).Str("chat_id", key).Msg("send rejection message")
			}
		}
		// Same step again: the user gets another attempt.
		e.sendPrompt(ctx, def, state)
		return true
	}

	state.Set(step.Key(), result.Value)
	state.Advance()
	if err := e.store.Save(ctx, state); err != nil {
		e.log.Error().Err(err).Str("chat_id", key).Msg("save conversation state")
	}

	if _, ok := def.Step(state.StepIndex); ok {
		e.sendPrompt(ctx, def, state)
		return true
	}

	e.finish(ctx, def, dc)
	return true
}

func (e *Engine) isCancel(upd *telegram.Update, def *Definition) bool {
	text := upd.Text()
	if text == "" {
		return false
	}
	value := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range def.CancelKeywords() {
		if value == strings.ToLower(strings.TrimSpace(keyword)) {
			return true
		}
	}
	return false
}

func (e *Engine) cancel(ctx context.Context, def *Definition, dc *DialogContext) {
	dc.state.MarkCancelled()
	if err := e.store.Delete(ctx, dc.state.ChatID); err != nil {
		e.log.Error().Err(err).Str("chat_id", dc.state.ChatID).Msg("delete conversation state")
	}
	if def.cancelMessage != "" {
		if err := dc.Send(ctx, def.cancelMessage); err != nil {
			e.log.Error().Err(err).Str("chat_id", dc.state.ChatID).Msg("send cancel message")
		}
	}
	if def.onCancel != nil {
		if err := def.onCancel(ctx, dc); err != nil {
			e.log.Error().Err(err).Str("conversation", def.Name()).Msg("cancel callback")
		}
	}
}

func (e *Engine) finish(ctx context.Context, def *Definition, dc *DialogContext) {
	dc.state.MarkFinished()
	if err := e.store.Delete(ctx, dc.state.ChatID); err != nil {
		e.log.Error().Err(err).Str("chat_id", dc.state.ChatID).Msg("delete conversation state")
	}
	if def.finishMessage != "" {
		if err := dc.Send(ctx, def.finishMessage); err != nil {
			e.log.Error().Err(err).Str("chat_id", dc.state.ChatID).Msg("send finish message")
		}
	}
	if def.onFinish != nil {
		if err := def.onFinish(ctx, dc); err != nil {
			e.log.Error().Err(err).Str("conversation", def.Name()).Msg("finish callback")
		}
	}
}

// sendPrompt delivers the current step's prompt. When the definition asks
// for cleanup, previously recorded outbound messages are deleted first. The
// state is re-persisted afterwards because prompting may mutate it (tracked
// message ids, generated codes).
func (e *Engine) sendPrompt(ctx context.Context, def *Definition, state *State) {
	step, ok := def.Step(state.StepIndex)
	if !ok {
		return
	}
	dc := newDialogContext(state, e.client, e.cleaner)

	prompt, err := step.Prompt(ctx, dc)
	if err != nil {
		e.log.Error().Err(err).Str("conversation", def.Name()).Str("chat_id", state.ChatID).Msg("produce step prompt")
	}

	if prompt != "" {
		if def.cleanup && len(state.MessageIDs) > 0 {
			if err := e.cleaner.Clean(ctx, dc.chatID, state.MessageIDs); err != nil {
				e.log.Error().Err(err).Str("chat_id", state.ChatID).Msg("prompt cleanup")
			}
			state.ClearMessageIDs()
		}
		sent, err := e.client.SendMessage(ctx, dc.chatID, prompt, nil)
		if err != nil {
			e.log.Error().Err(err).Str("chat_id", state.ChatID).Msg("send prompt")
		} else if sent != nil && sent.MessageID != 0 {
			state.AddMessageID(sent.MessageID)
		}
	}

	if err := e.store.Save(ctx, state); err != nil {
		e.log.Error().Err(err).Str("chat_id", state.ChatID).Msg("save conversation state")
	}
}
