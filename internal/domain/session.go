package domain

import "time"

// PendingAction is a tool call the engine has deferred pending explicit user
// confirmation. At most one pending action exists per session.
type PendingAction struct {
	Call      ToolCall  `json:"call"`
	CreatedAt time.Time `json:"created_at"`
}

// UserIdentity carries the verified identity of a signed-in user. The token is
// forwarded as a bearer credential on tool calls that act on the user's behalf.
type UserIdentity struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ConversationState is the persisted record for one user session.
type ConversationState struct {
	SessionID string         `json:"session_id"`
	History   []Message      `json:"history"`
	Pending   *PendingAction `json:"pending_action,omitempty"`
	User      *UserIdentity  `json:"user,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the state. Stores hand out clones so a caller
// mutating a state in flight cannot alias the stored record.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Message, len(s.History))
	for i, m := range s.History {
		out.History[i] = cloneMessage(m)
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Call = cloneToolCall(s.Pending.Call)
		out.Pending = &p
	}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return &out
}

func cloneMessage(m Message) Message {
	if len(m.ToolCalls) == 0 {
		return m
	}
	calls := make([]ToolCall, len(m.ToolCalls))
	for i, tc := range m.ToolCalls {
		calls[i] = cloneToolCall(tc)
	}
	m.ToolCalls = calls
	return m
}

func cloneToolCall(tc ToolCall) ToolCall {
	if tc.Args == nil {
		return tc
	}
	args := make(map[string]interface{}, len(tc.Args))
	for k, v := range tc.Args {
		args[k] = v
	}
	tc.Args = args
	return tc
}
