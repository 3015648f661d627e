package session

import (
	"context"
	"sync"

	"github.com/cymbalair/assistant/internal/domain"
)

// MemoryStore implements Store with an in-process map. States are cloned on
// the way in and out so callers never alias the stored record.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConversationState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.ConversationState),
	}
}

// Create stores a new session.
func (s *MemoryStore) Create(ctx context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[state.SessionID]; exists {
		return domain.ErrSessionExists
	}
	s.sessions[state.SessionID] = state.Clone()
	return nil
}

// Get retrieves a session by ID, or (nil, nil) when absent.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// Update replaces the stored state for an existing session.
func (s *MemoryStore) Update(ctx context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[state.SessionID]; !exists {
		return domain.ErrSessionNotFound
	}
	s.sessions[state.SessionID] = state.Clone()
	return nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
