package conversation

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"telegram-bot-engine/internal/telegram"
)

// OTPStep sends a one-time numeric code and waits for the user to type it
// back. The code is generated on the first prompt, kept on the dialog state
// under "<key>_code" and substituted into the prompt template in place of
// the {code} placeholder. The message carrying the reply is deleted after a
// successful match so the code does not linger in the chat.
type OTPStep struct {
	key       string
	template  string
	length    int
	rejectMsg string
}

var _ Step = (*OTPStep)(nil)

func NewOTPStep(key, template string, length int) *OTPStep {
	if length <= 0 {
		length = 6
	}
	return &OTPStep{
		key:       key,
		template:  template,
		length:    length,
		rejectMsg: "Wrong code, try again.",
	}
}

func (s *OTPStep) WithRejectMessage(msg string) *OTPStep {
	s.rejectMsg = msg
	return s
}

func (s *OTPStep) Key() string {
	return s.key
}

func (s *OTPStep) codeKey() string {
	return s.key + "_code"
}

func (s *OTPStep) Prompt(ctx context.Context, dc *DialogContext) (string, error) {
	code, ok := dc.state.Get(s.codeKey())
	if !ok || code == "" {
		var err error
		code, err = generateCode(s.length)
		if err != nil {
			return "", fmt.Errorf("conversation: generate otp code: %w", err)
		}
		dc.Set(s.codeKey(), code)
	}
	return strings.ReplaceAll(s.template, "{code}", code), nil
}

func (s *OTPStep) Consume(ctx context.Context, upd *telegram.Update, dc *DialogContext) Result {
	text := upd.Text()
	if text == "" {
		return Reject(s.rejectMsg)
	}
	code, ok := dc.state.Get(s.codeKey())
	if !ok || code == "" {
		return Reject(s.rejectMsg)
	}
	if strings.TrimSpace(text) != code {
		return Reject(s.rejectMsg)
	}
	if upd.Message != nil && upd.Message.MessageID != 0 {
		_ = dc.Delete(ctx, upd.Message.MessageID)
	}
	return Accept(code)
}

// generateCode returns a zero-padded random numeric string of the given
// length, so a length of 6 always yields exactly 6 digits.
func generateCode(length int) (string, error) {
	limit := big.NewInt(10)
	limit.Exp(limit, big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
