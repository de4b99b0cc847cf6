// Package checkpoint persists opaque per-conversation dialogue snapshots.
package checkpoint

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Store loads and saves conversation checkpoints. Load returns nil data and
// no error for a conversation that has never been saved.
type Store interface {
	Load(ctx context.Context, conversationID string) ([]byte, error)
	Save(ctx context.Context, conversationID string, data []byte) error
}

var errMissingID = errors.New("checkpoint: conversation id required")

func validID(conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errMissingID
	}
	return nil
}

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := validID(conversationID); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[conversationID]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *MemoryStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if err := validID(conversationID); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.mu.Lock()
	m.data[conversationID] = stored
	m.mu.Unlock()
	return nil
}

// Len reports how many conversations are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
