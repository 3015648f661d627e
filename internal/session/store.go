// Package session persists conversation state and serializes access to it.
package session

import (
	"context"

	"github.com/cymbalair/assistant/internal/domain"
)

// Store persists conversation state keyed by session id.
//
// Get returns (nil, nil) when the session does not exist; the Manager maps
// that to domain.ErrSessionNotFound for callers.
type Store interface {
	Create(ctx context.Context, state *domain.ConversationState) error
	Get(ctx context.Context, sessionID string) (*domain.ConversationState, error)
	Update(ctx context.Context, state *domain.ConversationState) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
