package conversation

import (
	"context"

	"telegram-bot-engine/internal/telegram"
)

// ContactStep asks the user to share a phone contact through a
// request_contact keyboard button. When requireSelf is set, the shared
// contact must belong to the replying user. The reply message is deleted
// after acceptance.
type ContactStep struct {
	key         string
	question    string
	buttonText  string
	requireSelf bool
	rejectMsg   string
}

var _ Step = (*ContactStep)(nil)

func NewContactStep(key, question string) *ContactStep {
	return &ContactStep{
		key:         key,
		question:    question,
		buttonText:  "Share phone number",
		requireSelf: true,
		rejectMsg:   "Please share a contact.",
	}
}

func (s *ContactStep) WithButtonText(text string) *ContactStep {
	s.buttonText = text
	return s
}

// AllowAnyContact disables the check that the contact belongs to the sender.
func (s *ContactStep) AllowAnyContact() *ContactStep {
	s.requireSelf = false
	return s
}

func (s *ContactStep) WithRejectMessage(msg string) *ContactStep {
	s.rejectMsg = msg
	return s
}

func (s *ContactStep) Key() string {
	return s.key
}

// Prompt sends the question itself so it can attach the contact keyboard,
// and returns an empty prompt to tell the engine nothing more is needed.
func (s *ContactStep) Prompt(ctx context.Context, dc *DialogContext) (string, error) {
	sent, err := dc.SendWithOptions(ctx, s.question, &telegram.SendOptions{
		ReplyMarkup: telegram.ContactRequestKeyboard(s.buttonText),
	})
	if err != nil {
		return "", err
	}
	if sent != nil && sent.MessageID != 0 {
		dc.TrackMessage(sent.MessageID)
	}
	return "", nil
}

func (s *ContactStep) Consume(ctx context.Context, upd *telegram.Update, dc *DialogContext) Result {
	msg := upd.Message
	if msg == nil || msg.Contact == nil || msg.Contact.PhoneNumber == "" {
		return Reject(s.rejectMsg)
	}
	if s.requireSelf {
		contactID, ok := msg.ContactUserID()
		fromID, okFrom := upd.FromID()
		if !ok || !okFrom || contactID != fromID {
			return Reject("Please share your own phone number.")
		}
	}
	if msg.MessageID != 0 {
		_ = dc.Delete(ctx, msg.MessageID)
	}
	return Accept(msg.Contact.PhoneNumber)
}
