package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-bot-engine/internal/conversation"
	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/infra/metrics"
)

var _ conversation.Store = (*ConversationStore)(nil)

// ConversationStore keeps dialog state in Redis under one key per chat.
// The TTL expires abandoned dialogs instead of leaving them active forever.
type ConversationStore struct {
	client Client
	ttl    time.Duration
}

func NewConversationStore(client Client, ttl time.Duration) *ConversationStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ConversationStore{client: client, ttl: ttl}
}

func (s *ConversationStore) key(chatID string) string {
	return "conv_state:" + chatID
}

func (s *ConversationStore) Get(ctx context.Context, chatID string) (*conversation.State, error) {
	data, err := s.client.Get(ctx, s.key(chatID))
	if IsNil(err) {
		return nil, domain.ErrNotFound
	}
	metrics.StoreOp("redis", "get", err)
	if err != nil {
		return nil, fmt.Errorf("redis: get conversation state: %w", err)
	}
	var state conversation.State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("redis: decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *ConversationStore) Save(ctx context.Context, state *conversation.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: encode conversation state: %w", err)
	}
	err = s.client.Set(ctx, s.key(state.ChatID), data, s.ttl)
	metrics.StoreOp("redis", "save", err)
	if err != nil {
		return fmt.Errorf("redis: save conversation state: %w", err)
	}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, chatID string) error {
	err := s.client.Del(ctx, s.key(chatID))
	metrics.StoreOp("redis", "delete", err)
	if err != nil {
		return fmt.Errorf("redis: delete conversation state: %w", err)
	}
	return nil
}
