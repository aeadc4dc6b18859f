package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/telegram"
)

func newTestEngine(t *testing.T, client *fakeClient, defs ...*Definition) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	nop := nopLogger()
	cleaner := telegram.NewMessageCleaner(client, false, nop)
	engine := NewEngine(store, client, cleaner, nop)
	for _, def := range defs {
		engine.Register(def)
	}
	return engine, store
}

func signupDefinition(t *testing.T, finished *map[string]string) *Definition {
	t.Helper()
	def, err := NewDefinition("signup",
		NewQuestionStep("name", "What is your name?"),
		NewQuestionStep("email", "What is your email?"),
	).
		OnFinish(func(ctx context.Context, dc *DialogContext) error {
			*finished = dc.Data()
			return nil
		}).
		Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	return def
}

func TestEngine_SignupScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	var finished map[string]string
	engine, store := newTestEngine(t, client, signupDefinition(t, &finished))

	if !engine.Start(ctx, "signup", textUpdate(1, 42, "/signup")) {
		t.Fatalf("Start returned false")
	}
	if got := client.sentTexts(); len(got) != 1 || got[0] != "What is your name?" {
		t.Fatalf("expected first prompt, got %v", got)
	}

	if !engine.Handle(ctx, textUpdate(2, 42, "Alice")) {
		t.Fatalf("Handle of first answer returned false")
	}
	state, err := store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("state after first answer: %v", err)
	}
	if v, _ := state.Get("name"); v != "Alice" {
		t.Fatalf("expected data[name]=Alice, got %q", v)
	}
	if state.StepIndex != 1 {
		t.Fatalf("expected step index 1, got %d", state.StepIndex)
	}
	if last, _ := client.lastSent(); last.text != "What is your email?" {
		t.Fatalf("expected second prompt, got %q", last.text)
	}

	if !engine.Handle(ctx, textUpdate(3, 42, "a@b.com")) {
		t.Fatalf("Handle of second answer returned false")
	}
	if finished == nil {
		t.Fatalf("finish callback not invoked")
	}
	if finished["name"] != "Alice" || finished["email"] != "a@b.com" {
		t.Fatalf("unexpected finish data: %v", finished)
	}
	if _, err := store.Get(ctx, "42"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected state deleted, got err=%v", err)
	}
}

func TestEngine_StartOverwritesExistingState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	var finished map[string]string
	engine, store := newTestEngine(t, client, signupDefinition(t, &finished))

	engine.Start(ctx, "signup", textUpdate(1, 42, "/signup"))
	engine.Handle(ctx, textUpdate(2, 42, "Alice"))

	// Restart: fresh state, no merge with the half-filled one.
	if !engine.Start(ctx, "signup", textUpdate(3, 42, "/signup")) {
		t.Fatalf("second Start returned false")
	}
	state, err := store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("state after restart: %v", err)
	}
	if state.StepIndex != 0 {
		t.Fatalf("expected step index 0 after restart, got %d", state.StepIndex)
	}
	if _, ok := state.Get("name"); ok {
		t.Fatalf("expected collected data to be dropped on restart")
	}
}

func TestEngine_StartFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	var finished map[string]string
	engine, _ := newTestEngine(t, client, signupDefinition(t, &finished))

	if engine.Start(ctx, "unknown", textUpdate(1, 42, "/go")) {
		t.Fatalf("Start of unregistered conversation should fail")
	}
	noChat := &telegram.Update{Message: &telegram.Message{Text: "/signup"}}
	if engine.Start(ctx, "signup", noChat) {
		t.Fatalf("Start without chat id should fail")
	}
}

func TestEngine_HandleWithoutStateFallsThrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	var finished map[string]string
	engine, _ := newTestEngine(t, client, signupDefinition(t, &finished))

	if engine.Handle(ctx, textUpdate(1, 42, "hello")) {
		t.Fatalf("Handle without active state should return false")
	}
}

func TestEngine_CancelPreemptsStepAndIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	cancelled := false
	def, err := NewDefinition("signup",
		NewQuestionStep("name", "What is your name?"),
	).
		CancelMessage("Aborted.").
		OnCancel(func(ctx context.Context, dc *DialogContext) error {
			cancelled = true
			return nil
		}).
		Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	engine, store := newTestEngine(t, client, def)

	engine.Start(ctx, "signup", textUpdate(1, 42, "/signup"))

	// Case-insensitive, trimmed match; evaluated before step handling.
	if !engine.Handle(ctx, textUpdate(2, 42, "  /CANCEL  ")) {
		t.Fatalf("cancel keyword should be handled")
	}
	if !cancelled {
		t.Fatalf("cancel callback not invoked")
	}
	if last, _ := client.lastSent(); last.text != "Aborted." {
		t.Fatalf("expected cancel message, got %q", last.text)
	}
	if _, err := store.Get(ctx, "42"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected state deleted after cancel, got err=%v", err)
	}

	// Second cancel finds no state and falls through to the router.
	if engine.Handle(ctx, textUpdate(3, 42, "/cancel")) {
		t.Fatalf("second cancel should not be handled")
	}
}

func TestEngine_RejectionRepromptsSameStep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	def, err := NewDefinition("signup",
		NewQuestionStep("email", "Email?").
			WithValidator(func(value string, _ *telegram.Update, _ *DialogContext) bool {
				return strings.Contains(value, "@")
			}).
			WithRejectMessage("Not an email."),
	).Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	engine, store := newTestEngine(t, client, def)

	engine.Start(ctx, "signup", textUpdate(1, 42, "/signup"))

	if !engine.Handle(ctx, textUpdate(2, 42, "nope")) {
		t.Fatalf("rejected input should still be handled")
	}
	texts := client.sentTexts()
	if len(texts) != 3 || texts[1] != "Not an email." || texts[2] != "Email?" {
		t.Fatalf("expected rejection then re-prompt, got %v", texts)
	}
	state, err := store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("state after rejection: %v", err)
	}
	if state.StepIndex != 0 {
		t.Fatalf("rejection must not advance the step, got index %d", state.StepIndex)
	}

	// A valid retry succeeds against the same step.
	if !engine.Handle(ctx, textUpdate(3, 42, "a@b.com")) {
		t.Fatalf("valid retry should be handled")
	}
	if _, err := store.Get(ctx, "42"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected dialog finished after valid retry, got err=%v", err)
	}
}

func TestEngine_CleanupDeletesPreviousPrompts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	def, err := NewDefinition("signup",
		NewQuestionStep("name", "Name?"),
		NewQuestionStep("email", "Email?"),
	).CleanupMessages().Build()
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	engine, store := newTestEngine(t, client, def)

	engine.Start(ctx, "signup", textUpdate(1, 42, "/signup"))
	state, _ := store.Get(ctx, "42")
	if len(state.MessageIDs) != 1 {
		t.Fatalf("expected one tracked prompt id, got %v", state.MessageIDs)
	}
	firstPromptID := state.MessageIDs[0]

	engine.Handle(ctx, textUpdate(2, 42, "Alice"))

	client.mu.Lock()
	deleted := append([]deletedCall{}, client.deleted...)
	client.mu.Unlock()
	if len(deleted) != 1 || deleted[0].messageID != firstPromptID {
		t.Fatalf("expected first prompt %d deleted, got %v", firstPromptID, deleted)
	}
	state, _ = store.Get(ctx, "42")
	if len(state.MessageIDs) != 1 {
		t.Fatalf("expected only the new prompt tracked, got %v", state.MessageIDs)
	}
}

func TestEngine_UnregisteredDefinitionForStateFallsThrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	engine, store := newTestEngine(t, client)

	// State left behind by a definition that is no longer registered.
	if err := store.Save(ctx, NewState("gone", "42")); err != nil {
		t.Fatalf("seed state: %v", err)
	}
	if engine.Handle(ctx, textUpdate(1, 42, "hello")) {
		t.Fatalf("state with unknown definition should not be handled")
	}
}

func TestEngine_ReregistrationIsPickedUpInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	var finished map[string]string
	engine, _ := newTestEngine(t, client, signupDefinition(t, &finished))

	engine.Start(ctx, "signup", textUpdate(1, 42, "/signup"))

	// Atomic replacement: the next update resolves the new definition.
	replacement, err := NewDefinition("signup",
		NewQuestionStep("name", "Name?"),
		NewQuestionStep("city", "Which city?"),
	).Build()
	if err != nil {
		t.Fatalf("build replacement: %v", err)
	}
	engine.Register(replacement)

	engine.Handle(ctx, textUpdate(2, 42, "Alice"))
	if last, _ := client.lastSent(); last.text != "Which city?" {
		t.Fatalf("expected replacement prompt, got %q", last.text)
	}
}
