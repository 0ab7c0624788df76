// internal/session/store.go
package session

import (
	"context"
	"errors"
	"sync"

	"quote-engine/internal/models"
)

// ErrNotFound is returned when a session id has no stored state, typically
// because the external store expired it after the idle timeout.
var ErrNotFound = errors.New("session not found")

// Store persists conversation sessions between turns. Expiry of idle
// sessions is the store's responsibility, never the orchestrator's.
type Store interface {
	Get(ctx context.Context, id string) (*models.ConversationSession, error)
	Save(ctx context.Context, s *models.ConversationSession) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.ConversationSession)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.ConversationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
