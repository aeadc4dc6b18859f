package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/router"
	"telegram-bot-engine/internal/telegram"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fetch struct {
	updates []*telegram.Update
	err     error
}

// scriptedClient serves pre-baked getUpdates batches and records the offset
// of every call. When the script runs out it cancels the poll context.
type scriptedClient struct {
	mu      sync.Mutex
	script  []fetch
	offsets []int64
	cancel  context.CancelFunc
}

func (c *scriptedClient) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.SentMessage, error) {
	return &telegram.SentMessage{MessageID: 1}, nil
}

func (c *scriptedClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (c *scriptedClient) GetUpdates(ctx context.Context, offset int64, timeout int) ([]*telegram.Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets = append(c.offsets, offset)
	if len(c.script) == 0 {
		if c.cancel != nil {
			c.cancel()
		}
		return nil, ctx.Err()
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next.updates, next.err
}

func pollUpdate(updateID, chatID int64, text string) *telegram.Update {
	return &telegram.Update{
		UpdateID: &updateID,
		Message: &telegram.Message{
			MessageID: int(updateID),
			From:      &telegram.User{ID: chatID},
			Chat:      &telegram.Chat{ID: chatID},
			Text:      text,
		},
	}
}

// recordingBot builds a bot whose fallback appends every dispatched text.
func recordingBot(t *testing.T, name string, client telegram.Client, seen *[]string) *bot.Bot {
	t.Helper()
	var mu sync.Mutex
	b, err := bot.NewBuilder(name, client).
		Fallback(func(ctx context.Context, upd *telegram.Update, rc *router.Context) error {
			mu.Lock()
			*seen = append(*seen, upd.Text())
			mu.Unlock()
			return nil
		}).
		Build()
	if err != nil {
		t.Fatalf("build bot: %v", err)
	}
	return b
}

func TestPoller_OnceDispatchesBatchAndAdvancesOffset(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{script: []fetch{
		{updates: []*telegram.Update{
			pollUpdate(5, 42, "one"),
			pollUpdate(6, 42, "two"),
			pollUpdate(7, 43, "three"),
		}},
	}}
	var seen []string
	b := recordingBot(t, "main", client, &seen)

	if err := NewPoller(b, nopLogger()).Run(context.Background(), PollOptions{Once: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 3 || seen[0] != "one" || seen[1] != "two" || seen[2] != "three" {
		t.Fatalf("expected in-order dispatch, got %v", seen)
	}
	if len(client.offsets) != 1 || client.offsets[0] != 0 {
		t.Fatalf("expected single fetch at offset 0, got %v", client.offsets)
	}
}

func TestPoller_OffsetNeverRegresses(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &scriptedClient{
		cancel: cancel,
		script: []fetch{
			{updates: []*telegram.Update{pollUpdate(5, 42, "a"), pollUpdate(7, 42, "b")}},
			// A batch with no ids must leave the offset where it was.
			{updates: []*telegram.Update{{Message: &telegram.Message{Chat: &telegram.Chat{ID: 42}, Text: "c"}}}},
		},
	}
	var seen []string
	b := recordingBot(t, "main", client, &seen)

	if err := NewPoller(b, nopLogger()).Run(ctx, PollOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	// offsets: initial 0, then max(5,7)+1=8, then still 8 for the final
	// script-exhausted call.
	want := []int64{0, 8, 8}
	if len(client.offsets) != len(want) {
		t.Fatalf("expected %d fetches, got %v", len(want), client.offsets)
	}
	for i, o := range want {
		if client.offsets[i] != o {
			t.Fatalf("fetch %d at offset %d, want %d (all: %v)", i, client.offsets[i], o, client.offsets)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected every update dispatched exactly once, got %v", seen)
	}
}

func TestPoller_OnceFetchFailureIsTerminal(t *testing.T) {
	t.Parallel()

	boom := errors.New("telegram is down")
	client := &scriptedClient{script: []fetch{{err: boom}}}
	var seen []string
	b := recordingBot(t, "main", client, &seen)

	err := NewPoller(b, nopLogger()).Run(context.Background(), PollOptions{Once: true})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the fetch error, got %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("nothing should have been dispatched, got %v", seen)
	}
}

func TestPoller_ContinuesAfterFetchFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &scriptedClient{
		cancel: cancel,
		script: []fetch{
			{err: errors.New("transient")},
			{updates: []*telegram.Update{pollUpdate(9, 42, "after failure")}},
		},
	}
	var seen []string
	b := recordingBot(t, "main", client, &seen)

	if err := NewPoller(b, nopLogger()).Run(ctx, PollOptions{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 1 || seen[0] != "after failure" {
		t.Fatalf("expected dispatch after the transient failure, got %v", seen)
	}
}

func TestRunner_RejectsUnknownBotBeforePolling(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{}
	var seen []string
	reg := bot.NewRegistry("main")
	reg.Add(recordingBot(t, "main", client, &seen))

	err := NewRunner(reg, nopLogger()).Run(context.Background(), []string{"main", "ghost"}, PollOptions{Once: true})
	if !errors.Is(err, domain.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
	if len(client.offsets) != 0 {
		t.Fatalf("no poll loop should have started, offsets=%v", client.offsets)
	}
}

func TestRunner_EmptyRegistryFails(t *testing.T) {
	t.Parallel()

	err := NewRunner(bot.NewRegistry("main"), nopLogger()).Run(context.Background(), nil, PollOptions{Once: true})
	if !errors.Is(err, domain.ErrBotNotFound) {
		t.Fatalf("expected ErrBotNotFound, got %v", err)
	}
}

func TestRunner_MultiBotAggregatesFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("token revoked")
	okClient := &scriptedClient{script: []fetch{{updates: []*telegram.Update{pollUpdate(1, 42, "fine")}}}}
	badClient := &scriptedClient{script: []fetch{{err: boom}}}

	var seenOK, seenBad []string
	reg := bot.NewRegistry("alpha")
	reg.Add(recordingBot(t, "alpha", okClient, &seenOK))
	reg.Add(recordingBot(t, "beta", badClient, &seenBad))

	err := NewRunner(reg, nopLogger()).Run(context.Background(), nil, PollOptions{Once: true})
	if !errors.Is(err, boom) {
		t.Fatalf("one failing loop must fail the batch, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "beta") {
		t.Fatalf("expected the failing bot named, got %v", err)
	}
	if len(seenOK) != 1 {
		t.Fatalf("healthy bot should still have polled, got %v", seenOK)
	}
}

func TestWebhook_Handle(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{}
	var seen []string
	b := recordingBot(t, "main", client, &seen)
	hook := NewWebhook("main", b, nopLogger())

	// Malformed payload: 400, handler never invoked.
	status, body := hook.Handle(context.Background(), []byte("not json"))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	var ack ackBody
	if err := json.Unmarshal(body, &ack); err != nil || ack.OK {
		t.Fatalf("expected ok=false body, got %s (%v)", body, err)
	}
	if len(seen) != 0 {
		t.Fatalf("handler must not run for malformed payloads, got %v", seen)
	}

	// Valid payload: 200 ok=true and exactly one dispatch.
	raw, _ := json.Marshal(pollUpdate(10, 42, "hello"))
	status, body = hook.Handle(context.Background(), raw)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if err := json.Unmarshal(body, &ack); err != nil || !ack.OK {
		t.Fatalf("expected ok=true body, got %s (%v)", body, err)
	}
	if len(seen) != 1 || seen[0] != "hello" {
		t.Fatalf("expected one dispatch, got %v", seen)
	}

	// An empty but well-formed update is still acknowledged with 200.
	raw, _ = json.Marshal(&telegram.Update{})
	if status, _ = hook.Handle(context.Background(), raw); status != http.StatusOK {
		t.Fatalf("unhandled update must still ack 200, got %d", status)
	}
}

func TestWebhookServer_Routes(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{}
	var seen []string
	reg := bot.NewRegistry("main")
	reg.Add(recordingBot(t, "main", client, &seen))

	srv := httptest.NewServer(NewWebhookServer(reg, nopLogger()).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	raw, _ := json.Marshal(pollUpdate(1, 42, "ping"))
	resp, err = http.Post(srv.URL+"/webhook/main", "application/json", strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status %d: %s", resp.StatusCode, payload)
	}
	if len(seen) != 1 || seen[0] != "ping" {
		t.Fatalf("expected dispatched update, got %v", seen)
	}

	resp, err = http.Post(srv.URL+"/webhook/ghost", "application/json", strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("post unknown bot: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bot, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/webhook/main", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("post malformed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", resp.StatusCode)
	}
	if len(seen) != 1 {
		t.Fatalf("malformed payload must not reach the handler, got %v", seen)
	}
}
