package conversation

import (
	"context"

	"telegram-bot-engine/internal/telegram"
)

// Result is the outcome of feeding one update into a step. A rejection is a
// first-class outcome, not an error: the engine re-prompts the same step.
type Result struct {
	Accepted bool
	// Value is recorded under the step key when accepted.
	Value string
	// Message is sent to the user when rejected, if non-empty.
	Message string
}

func Accept(value string) Result {
	return Result{Accepted: true, Value: value}
}

func Reject(message string) Result {
	return Result{Message: message}
}

// Step is one prompt/consume unit of a dialog. Implementations must fail
// closed: absent or malformed input yields a rejection, never a panic.
type Step interface {
	// Key names the slot the accepted value is recorded under.
	Key() string
	// Prompt returns the text to send before the step consumes input.
	// An empty prompt with nil error means the step already delivered its
	// own prompt (e.g. a message with a custom keyboard).
	Prompt(ctx context.Context, dc *DialogContext) (string, error)
	// Consume feeds one update into the step.
	Consume(ctx context.Context, upd *telegram.Update, dc *DialogContext) Result
}
