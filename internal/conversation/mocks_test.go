package conversation

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/telegram"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeClient records outbound calls and hands out sequential message ids.
type fakeClient struct {
	mu        sync.Mutex
	sent      []sentCall
	deleted   []deletedCall
	nextID    int
	sendErr   error
	deleteErr error
}

type sentCall struct {
	chatID int64
	text   string
	opts   *telegram.SendOptions
}

type deletedCall struct {
	chatID    int64
	messageID int
}

func newFakeClient() *fakeClient {
	return &fakeClient{}
}

func (f *fakeClient) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentCall{chatID: chatID, text: text, opts: opts})
	f.nextID++
	return &telegram.SentMessage{MessageID: f.nextID}, nil
}

func (f *fakeClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, deletedCall{chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeClient) GetUpdates(ctx context.Context, offset int64, timeout int) ([]*telegram.Update, error) {
	return nil, nil
}

func (f *fakeClient) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.text
	}
	return out
}

func (f *fakeClient) lastSent() (sentCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentCall{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func textUpdate(updateID int64, chatID int64, text string) *telegram.Update {
	upd := &telegram.Update{
		Message: &telegram.Message{
			MessageID: int(updateID),
			From:      &telegram.User{ID: chatID},
			Chat:      &telegram.Chat{ID: chatID},
			Text:      text,
		},
	}
	if updateID > 0 {
		upd.UpdateID = &updateID
	}
	return upd
}

func contactUpdate(chatID int64, fromID int64, phone string, contactUserID int64) *telegram.Update {
	return &telegram.Update{
		Message: &telegram.Message{
			MessageID: 900,
			From:      &telegram.User{ID: fromID},
			Chat:      &telegram.Chat{ID: chatID},
			Contact:   &telegram.Contact{PhoneNumber: phone, UserID: contactUserID},
		},
	}
}

func testDialogContext(chatID int64, client *fakeClient) *DialogContext {
	state := NewState("test", strconv.FormatInt(chatID, 10))
	return testDialogContextWithState(state, client)
}

func testDialogContextWithState(state *State, client *fakeClient) *DialogContext {
	nop := nopLogger()
	cleaner := telegram.NewMessageCleaner(client, false, nop)
	return newDialogContext(state, client, cleaner)
}
