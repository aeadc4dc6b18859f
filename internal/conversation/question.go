package conversation

import (
	"context"

	"telegram-bot-engine/internal/telegram"
)

const defaultRejectMessage = "Invalid input."

// Parser extracts a candidate value from an update. Returning ok=false
// rejects the input.
type Parser func(upd *telegram.Update, dc *DialogContext) (string, bool)

// Validator accepts or rejects a parsed value.
type Validator func(value string, upd *telegram.Update, dc *DialogContext) bool

// QuestionStep asks a fixed question and records the reply. The default
// parser takes the update's generic value projection (text, phone number or
// file id); a validator can narrow what is accepted.
type QuestionStep struct {
	key       string
	question  string
	parser    Parser
	validator Validator
	rejectMsg string
}

var _ Step = (*QuestionStep)(nil)

func NewQuestionStep(key, question string) *QuestionStep {
	return &QuestionStep{key: key, question: question, rejectMsg: defaultRejectMessage}
}

// WithParser replaces the default value projection.
func (s *QuestionStep) WithParser(p Parser) *QuestionStep {
	s.parser = p
	return s
}

// WithValidator adds an acceptance predicate.
func (s *QuestionStep) WithValidator(v Validator) *QuestionStep {
	s.validator = v
	return s
}

// WithRejectMessage overrides the generic rejection message.
func (s *QuestionStep) WithRejectMessage(msg string) *QuestionStep {
	s.rejectMsg = msg
	return s
}

func (s *QuestionStep) Key() string {
	return s.key
}

func (s *QuestionStep) Prompt(ctx context.Context, dc *DialogContext) (string, error) {
	return s.question, nil
}

func (s *QuestionStep) Consume(ctx context.Context, upd *telegram.Update, dc *DialogContext) Result {
	var (
		value string
		ok    bool
	)
	if s.parser != nil {
		value, ok = s.parser(upd, dc)
	} else if upd.Message != nil {
		value, ok = upd.Message.Value()
	}
	if !ok {
		return Reject(s.rejectMsg)
	}
	if s.validator != nil && !s.validator(value, upd, dc) {
		return Reject(s.rejectMsg)
	}
	return Accept(value)
}
