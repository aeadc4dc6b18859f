package conversation

import (
	"context"
	"sync"

	"telegram-bot-engine/internal/domain"
)

// Store is the keyed persistence surface for dialog state. It holds no
// transition logic. Implementations must support concurrent access across
// different chat ids; no cross-key transactions are required.
type Store interface {
	// Get returns the active state for a chat, or domain.ErrNotFound.
	Get(ctx context.Context, chatID string) (*State, error)
	// Save persists the state, overwriting any previous record for the chat.
	Save(ctx context.Context, state *State) error
	// Delete removes the state for a chat. Deleting a missing key is a no-op.
	Delete(ctx context.Context, chatID string) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps dialog state in process memory. Suitable for tests and
// single-process webhook deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (m *MemoryStore) Get(ctx context.Context, chatID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ChatID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
	return nil
}
