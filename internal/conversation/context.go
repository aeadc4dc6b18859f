package conversation

import (
	"context"
	"strconv"

	"telegram-bot-engine/internal/telegram"
)

// DialogContext is the send/delete capability handed to steps and to
// finish/cancel callbacks, scoped to the dialog's chat.
type DialogContext struct {
	state   *State
	chatID  int64
	client  telegram.Client
	cleaner *telegram.MessageCleaner
}

func newDialogContext(state *State, client telegram.Client, cleaner *telegram.MessageCleaner) *DialogContext {
	chatID, _ := strconv.ParseInt(state.ChatID, 10, 64)
	return &DialogContext{state: state, chatID: chatID, client: client, cleaner: cleaner}
}

// ChatID is the string key the dialog state is stored under.
func (dc *DialogContext) ChatID() string {
	return dc.state.ChatID
}

// Data returns a copy of the values collected so far.
func (dc *DialogContext) Data() map[string]string {
	out := make(map[string]string, len(dc.state.Data))
	for k, v := range dc.state.Data {
		out[k] = v
	}
	return out
}

// Set records an extra value on the dialog state.
func (dc *DialogContext) Set(key, value string) {
	dc.state.Set(key, value)
}

// Send sends a plain text message to the dialog's chat.
func (dc *DialogContext) Send(ctx context.Context, text string) error {
	_, err := dc.client.SendMessage(ctx, dc.chatID, text, nil)
	return err
}

// SendWithOptions sends a message with explicit send options and returns the
// sent message so callers can track its id.
func (dc *DialogContext) SendWithOptions(ctx context.Context, text string, opts *telegram.SendOptions) (*telegram.SentMessage, error) {
	return dc.client.SendMessage(ctx, dc.chatID, text, opts)
}

// Delete removes a message from the dialog's chat through the cleaner, so
// the strict/best-effort policy applies.
func (dc *DialogContext) Delete(ctx context.Context, messageID int) error {
	return dc.cleaner.Clean(ctx, dc.chatID, []int{messageID})
}

// TrackMessage adds an outbound message id to the cleanup list.
func (dc *DialogContext) TrackMessage(messageID int) {
	dc.state.AddMessageID(messageID)
}
