// Package service orchestrates sessions, the dialog engine, and persistence.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cymbalair/assistant/internal/domain"
	"github.com/cymbalair/assistant/internal/engine"
	"github.com/cymbalair/assistant/internal/session"
)

const defaultGreeting = "Welcome to Cymbal Air!  How may I assist you?"

// Stepper advances one session's conversation by one signal.
type Stepper interface {
	Step(ctx context.Context, state *domain.ConversationState, input engine.StepInput) (*engine.StepResult, error)
}

// Service owns the load, lock, step, save cycle for every session operation.
// State is only persisted after a step completes; an infrastructure failure
// leaves the stored state untouched.
type Service struct {
	sessions *session.Manager
	engine   Stepper
	now      func() time.Time
}

// NewService creates the assistant service.
func NewService(sessions *session.Manager, stepper Stepper) *Service {
	return &Service{
		sessions: sessions,
		engine:   stepper,
		now:      time.Now,
	}
}

// CreateSession starts a fresh session seeded with the assistant greeting.
func (s *Service) CreateSession(ctx context.Context) (*domain.CreateSessionResponse, error) {
	now := s.now()
	state := &domain.ConversationState{
		SessionID: "sess_" + uuid.New().String(),
		History:   []domain.Message{s.greetingMessage(nil)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Printf("INFO: created session %s", state.SessionID)
	return &domain.CreateSessionResponse{SessionID: state.SessionID, Messages: state.History}, nil
}

// GetMessages returns the session's conversation history.
func (s *Service) GetMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.History, nil
}

// Chat sends a user prompt into the session.
func (s *Service) Chat(ctx context.Context, sessionID, prompt string) (*domain.ChatResponse, error) {
	return s.step(ctx, sessionID, engine.StepInput{UserText: prompt})
}

// ConfirmBooking executes the session's pending action.
func (s *Service) ConfirmBooking(ctx context.Context, sessionID string) (*domain.ChatResponse, error) {
	return s.step(ctx, sessionID, engine.StepInput{Confirm: true})
}

// DeclineBooking discards the session's pending action without executing it.
func (s *Service) DeclineBooking(ctx context.Context, sessionID string) (*domain.ChatResponse, error) {
	return s.step(ctx, sessionID, engine.StepInput{Decline: true})
}

func (s *Service) step(ctx context.Context, sessionID string, input engine.StepInput) (*domain.ChatResponse, error) {
	release := s.sessions.Acquire(sessionID)
	defer release()

	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Step(ctx, state, input)
	if err != nil {
		// Nothing is saved: the stored state still reflects the last
		// completed step.
		return nil, err
	}

	state.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	resp := &domain.ChatResponse{
		Type:   "message",
		Output: result.Output,
		Trace:  result.Trace,
	}
	if result.Confirmation != nil {
		resp.Type = "confirmation"
		resp.Confirmation = result.Confirmation
	}
	return resp, nil
}

// Reset clears the conversation back to the greeting. The signed-in identity
// survives a reset; the pending action does not.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	release := s.sessions.Acquire(sessionID)
	defer release()

	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	state.History = []domain.Message{s.greetingMessage(state.User)}
	state.Pending = nil
	state.UpdatedAt = s.now()
	log.Printf("INFO: reset session %s", sessionID)
	return s.sessions.Update(ctx, state)
}

// SignIn attaches a verified identity to the session and greets the user by
// name. A fresh session has its greeting replaced; an ongoing conversation
// gets the greeting appended.
func (s *Service) SignIn(ctx context.Context, sessionID string, req domain.SignInRequest) (*domain.Message, error) {
	release := s.sessions.Acquire(sessionID)
	defer release()

	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state.User = &domain.UserIdentity{Token: req.UserToken, Name: req.Name, Email: req.Email}
	greeting := s.greetingMessage(state.User)
	if len(state.History) == 1 {
		state.History[0] = greeting
	} else {
		state.History = append(state.History, greeting)
	}
	state.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, state); err != nil {
		return nil, err
	}
	log.Printf("INFO: session %s signed in", sessionID)
	return &greeting, nil
}

// SignOut clears the identity and starts the conversation over.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	release := s.sessions.Acquire(sessionID)
	defer release()

	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	state.User = nil
	state.Pending = nil
	state.History = []domain.Message{s.greetingMessage(nil)}
	state.UpdatedAt = s.now()
	log.Printf("INFO: session %s signed out", sessionID)
	return s.sessions.Update(ctx, state)
}

func (s *Service) greetingMessage(user *domain.UserIdentity) domain.Message {
	content := defaultGreeting
	if user != nil && user.Name != "" {
		content = fmt.Sprintf("Welcome to Cymbal Air, %s!  How may I assist you?", user.Name)
	}
	return domain.Message{
		MessageID: "msg_" + uuid.New().String(),
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: s.now(),
	}
}
