// Package domain defines the core domain models for the assistant.
package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Message is one turn of dialog in a conversation.
//
// ToolCalls is set only on assistant messages. ToolCallID and ToolName are set
// only on tool messages and link a tool result back to the assistant tool call
// that produced it.
type Message struct {
	MessageID  string     `json:"message_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TraceEntry records one tool invocation made during a step. Traces are
// returned to the caller for observability and are never persisted.
type TraceEntry struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Results    string `json:"results"`
	Query      string `json:"query,omitempty"`
}
