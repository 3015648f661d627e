package domain

// ChatRequest represents a user prompt for a session.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// Confirmation describes a tool call waiting for the user's approval. Params
// are the validated, fully resolved arguments the confirmed call will run with.
type Confirmation struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

// ChatResponse represents the outcome of one step. Type is "message" for a
// final reply and "confirmation" when a pending action awaits approval.
type ChatResponse struct {
	Type         string        `json:"type"`
	Output       string        `json:"output"`
	Trace        []TraceEntry  `json:"trace,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// CreateSessionResponse represents a freshly created session.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// SignInRequest represents a verified user identity being attached to a
// session. Token verification happens upstream; the service trusts it.
type SignInRequest struct {
	UserToken string `json:"user_token"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
}
