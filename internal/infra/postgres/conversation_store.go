package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-bot-engine/internal/conversation"
	"telegram-bot-engine/internal/domain"
	"telegram-bot-engine/internal/infra/metrics"
)

// NewPool connects a pgx pool against the given DSN.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_states (
    chat_id    TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

var _ conversation.Store = (*ConversationStore)(nil)

// ConversationStore persists dialog state in Postgres, one row per chat.
type ConversationStore struct {
	pool *pgxpool.Pool
}

func NewConversationStore(pool *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{pool: pool}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (s *ConversationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (s *ConversationStore) Get(ctx context.Context, chatID string) (*conversation.State, error) {
	const sql = `SELECT state FROM conversation_states WHERE chat_id = $1;`

	var raw []byte
	err := s.pool.QueryRow(ctx, sql, chatID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	metrics.StoreOp("postgres", "get", err)
	if err != nil {
		return nil, fmt.Errorf("postgres: get conversation state: %w", err)
	}
	var state conversation.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("postgres: decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *ConversationStore) Save(ctx context.Context, state *conversation.State) error {
	const sql = `
INSERT INTO conversation_states (chat_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (chat_id) DO UPDATE
  SET state      = EXCLUDED.state,
      updated_at = EXCLUDED.updated_at;
`
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("postgres: encode conversation state: %w", err)
	}
	_, err = s.pool.Exec(ctx, sql, state.ChatID, raw)
	metrics.StoreOp("postgres", "save", err)
	if err != nil {
		return fmt.Errorf("postgres: save conversation state: %w", err)
	}
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, chatID string) error {
	const sql = `DELETE FROM conversation_states WHERE chat_id = $1;`

	_, err := s.pool.Exec(ctx, sql, chatID)
	metrics.StoreOp("postgres", "delete", err)
	if err != nil {
		return fmt.Errorf("postgres: delete conversation state: %w", err)
	}
	return nil
}
