package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cymbalair/assistant/internal/domain"
	"github.com/cymbalair/assistant/internal/engine"
	"github.com/cymbalair/assistant/internal/session"
)

// fakeStepper mutates state like the real engine would and returns a canned
// result, or fails without touching anything.
type fakeStepper struct {
	result *engine.StepResult
	err    error
	mutate func(state *domain.ConversationState, input engine.StepInput)
}

func (f *fakeStepper) Step(ctx context.Context, state *domain.ConversationState, input engine.StepInput) (*engine.StepResult, error) {
	if f.err != nil {
		state.History = append(state.History, domain.Message{Role: domain.RoleUser, Content: "partial"})
		return nil, f.err
	}
	if f.mutate != nil {
		f.mutate(state, input)
	}
	return f.result, nil
}

func newService(stepper Stepper) (*Service, *session.Manager) {
	mgr := session.NewManager(session.NewMemoryStore())
	return NewService(mgr, stepper), mgr
}

func TestCreateSessionGreeting(t *testing.T) {
	svc, _ := newService(&fakeStepper{})
	resp, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, resp.Messages[0].Role)
	assert.Equal(t, "Welcome to Cymbal Air!  How may I assist you?", resp.Messages[0].Content)

	history, err := svc.GetMessages(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestChatPersistsState(t *testing.T) {
	stepper := &fakeStepper{
		result: &engine.StepResult{Output: "hello there"},
		mutate: func(state *domain.ConversationState, input engine.StepInput) {
			state.History = append(state.History,
				domain.Message{Role: domain.RoleUser, Content: input.UserText},
				domain.Message{Role: domain.RoleAssistant, Content: "hello there"},
			)
		},
	}
	svc, _ := newService(stepper)
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	resp, err := svc.Chat(context.Background(), created.SessionID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "hello there", resp.Output)

	history, err := svc.GetMessages(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestChatUnknownSession(t *testing.T) {
	svc, _ := newService(&fakeStepper{})
	_, err := svc.Chat(context.Background(), "sess_missing", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestChatFailureDoesNotPersist(t *testing.T) {
	stepper := &fakeStepper{err: fmt.Errorf("%w: upstream 500", domain.ErrModelUnavailable)}
	svc, _ := newService(stepper)
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), created.SessionID, "hi")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)

	// The stepper mutated its copy before failing; the stored state must
	// still be the original greeting only.
	history, err := svc.GetMessages(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestChatConfirmationResponse(t *testing.T) {
	stepper := &fakeStepper{
		result: &engine.StepResult{
			Output: "Please confirm if you would like to book the ticket.",
			Confirmation: &domain.Confirmation{
				Tool:   "insert_ticket",
				Params: map[string]interface{}{"airline": "CY"},
			},
		},
	}
	svc, _ := newService(stepper)
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	resp, err := svc.Chat(context.Background(), created.SessionID, "book it")
	require.NoError(t, err)
	assert.Equal(t, "confirmation", resp.Type)
	require.NotNil(t, resp.Confirmation)
	assert.Equal(t, "insert_ticket", resp.Confirmation.Tool)
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	stepper := &fakeStepper{
		result: &engine.StepResult{Output: "ok"},
		mutate: func(state *domain.ConversationState, input engine.StepInput) {
			state.History = append(state.History, domain.Message{Role: domain.RoleUser, Content: input.UserText})
			if input.UserText == "book it for b" {
				state.Pending = &domain.PendingAction{Call: domain.ToolCall{ID: "tc_b", Name: "insert_ticket"}}
			}
		},
	}
	svc, mgr := newService(stepper)
	a, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	b, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(context.Background(), a.SessionID, "hello from a")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Chat(context.Background(), b.SessionID, "book it for b")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stateA, err := mgr.Get(context.Background(), a.SessionID)
	require.NoError(t, err)
	stateB, err := mgr.Get(context.Background(), b.SessionID)
	require.NoError(t, err)

	// Each session saw all of its own writes and none of the other's.
	require.Len(t, stateA.History, 1+n)
	for _, m := range stateA.History[1:] {
		assert.Equal(t, "hello from a", m.Content)
	}
	assert.Nil(t, stateA.Pending)

	require.Len(t, stateB.History, 1+n)
	for _, m := range stateB.History[1:] {
		assert.Equal(t, "book it for b", m.Content)
	}
	require.NotNil(t, stateB.Pending)
	assert.Equal(t, "insert_ticket", stateB.Pending.Call.Name)
}

func TestConfirmWithoutPending(t *testing.T) {
	stepper := &fakeStepper{err: domain.ErrNoPendingAction}
	svc, _ := newService(stepper)
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = svc.ConfirmBooking(context.Background(), created.SessionID)
	assert.ErrorIs(t, err, domain.ErrNoPendingAction)
}

func TestResetKeepsIdentityDropsPending(t *testing.T) {
	svc, mgr := newService(&fakeStepper{result: &engine.StepResult{Output: "ok"}})
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), created.SessionID, domain.SignInRequest{
		UserToken: "tok", Name: "Alice", Email: "alice@example.com",
	})
	require.NoError(t, err)

	// Simulate an in-flight booking.
	state, err := mgr.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	state.Pending = &domain.PendingAction{Call: domain.ToolCall{ID: "tc_1", Name: "insert_ticket"}}
	state.History = append(state.History, domain.Message{Role: domain.RoleUser, Content: "book it"})
	require.NoError(t, mgr.Update(context.Background(), state))

	require.NoError(t, svc.Reset(context.Background(), created.SessionID))

	after, err := mgr.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Nil(t, after.Pending)
	require.NotNil(t, after.User)
	assert.Equal(t, "Alice", after.User.Name)
	require.Len(t, after.History, 1)
	assert.Equal(t, "Welcome to Cymbal Air, Alice!  How may I assist you?", after.History[0].Content)
}

func TestSignInReplacesFreshGreeting(t *testing.T) {
	svc, _ := newService(&fakeStepper{})
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	greeting, err := svc.SignIn(context.Background(), created.SessionID, domain.SignInRequest{
		UserToken: "tok", Name: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Cymbal Air, Alice!  How may I assist you?", greeting.Content)

	history, err := svc.GetMessages(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, greeting.Content, history[0].Content)
}

func TestSignInMidConversationAppendsGreeting(t *testing.T) {
	stepper := &fakeStepper{
		result: &engine.StepResult{Output: "sure"},
		mutate: func(state *domain.ConversationState, input engine.StepInput) {
			state.History = append(state.History,
				domain.Message{Role: domain.RoleUser, Content: input.UserText},
				domain.Message{Role: domain.RoleAssistant, Content: "sure"},
			)
		},
	}
	svc, _ := newService(stepper)
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), created.SessionID, "hi")
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), created.SessionID, domain.SignInRequest{UserToken: "tok", Name: "Alice"})
	require.NoError(t, err)

	history, err := svc.GetMessages(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "Welcome to Cymbal Air, Alice!  How may I assist you?", history[3].Content)
}

func TestSignOutClearsEverything(t *testing.T) {
	svc, mgr := newService(&fakeStepper{})
	created, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	_, err = svc.SignIn(context.Background(), created.SessionID, domain.SignInRequest{UserToken: "tok", Name: "Alice"})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), created.SessionID))

	after, err := mgr.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Nil(t, after.User)
	assert.Nil(t, after.Pending)
	require.Len(t, after.History, 1)
	assert.Equal(t, "Welcome to Cymbal Air!  How may I assist you?", after.History[0].Content)
}
