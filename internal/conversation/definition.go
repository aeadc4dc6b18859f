package conversation

import (
	"context"
	"fmt"

	"telegram-bot-engine/internal/domain"
)

// Callback runs when a dialog finishes or is cancelled. It receives the
// dialog context, which exposes the accumulated data and a send/delete
// capability scoped to the dialog's chat.
type Callback func(ctx context.Context, dc *DialogContext) error

// Definition is the immutable template of a dialog: an ordered list of
// steps plus cancellation and completion behavior. Build one through
// DefinitionBuilder and treat it as read-only afterwards.
type Definition struct {
	name           string
	steps          []Step
	cancelKeywords []string
	cancelMessage  string
	finishMessage  string
	onCancel       Callback
	onFinish       Callback
	cleanup        bool
}

func (d *Definition) Name() string {
	return d.name
}

// Step returns the step at the given index, or false past the last step.
func (d *Definition) Step(index int) (Step, bool) {
	if index < 0 || index >= len(d.steps) {
		return nil, false
	}
	return d.steps[index], true
}

func (d *Definition) Len() int {
	return len(d.steps)
}

func (d *Definition) CancelKeywords() []string {
	return d.cancelKeywords
}

// DefinitionBuilder assembles a Definition with straight-line configuration
// code. Build validates and returns the immutable result.
type DefinitionBuilder struct {
	def Definition
}

func NewDefinition(name string, steps ...Step) *DefinitionBuilder {
	return &DefinitionBuilder{def: Definition{
		name:           name,
		steps:          steps,
		cancelKeywords: []string{"/cancel"},
		cancelMessage:  "Operation cancelled.",
	}}
}

// AddStep appends a step to the dialog.
func (b *DefinitionBuilder) AddStep(step Step) *DefinitionBuilder {
	b.def.steps = append(b.def.steps, step)
	return b
}

// CancelKeywords replaces the phrases that abort the dialog. Matching is
// case-insensitive after trimming.
func (b *DefinitionBuilder) CancelKeywords(keywords ...string) *DefinitionBuilder {
	b.def.cancelKeywords = keywords
	return b
}

// CancelMessage sets the text sent on cancellation; empty disables it.
func (b *DefinitionBuilder) CancelMessage(msg string) *DefinitionBuilder {
	b.def.cancelMessage = msg
	return b
}

// FinishMessage sets the text sent when the dialog completes.
func (b *DefinitionBuilder) FinishMessage(msg string) *DefinitionBuilder {
	b.def.finishMessage = msg
	return b
}

func (b *DefinitionBuilder) OnCancel(cb Callback) *DefinitionBuilder {
	b.def.onCancel = cb
	return b
}

func (b *DefinitionBuilder) OnFinish(cb Callback) *DefinitionBuilder {
	b.def.onFinish = cb
	return b
}

// CleanupMessages makes the engine delete previously sent prompts before
// each new one.
func (b *DefinitionBuilder) CleanupMessages() *DefinitionBuilder {
	b.def.cleanup = true
	return b
}

func (b *DefinitionBuilder) Build() (*Definition, error) {
	if b.def.name == "" {
		return nil, fmt.Errorf("conversation: %w: definition name", domain.ErrMissingSetting)
	}
	if len(b.def.steps) == 0 {
		return nil, fmt.Errorf("conversation: %q: %w", b.def.name, domain.ErrEmptyConversation)
	}
	def := b.def
	def.steps = append([]Step{}, b.def.steps...)
	def.cancelKeywords = append([]string{}, b.def.cancelKeywords...)
	return &def, nil
}
