package session

import (
	"context"
	"sync"

	"github.com/cymbalair/assistant/internal/domain"
)

// Manager wraps a Store with per-session serialization. All writes for one
// session id happen under that session's lock; sessions never block each
// other.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sessionLock),
	}
}

// Acquire locks the session and returns its release func. Lock entries are
// refcounted and dropped once the last holder releases.
func (m *Manager) Acquire(sessionID string) (release func()) {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// Create stores a new session.
func (m *Manager) Create(ctx context.Context, state *domain.ConversationState) error {
	return m.store.Create(ctx, state)
}

// Get retrieves a session, mapping absence to domain.ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	state, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrSessionNotFound
	}
	return state, nil
}

// Update replaces the stored state for an existing session.
func (m *Manager) Update(ctx context.Context, state *domain.ConversationState) error {
	return m.store.Update(ctx, state)
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}
