// Package tools defines the assistant's tool registry and built-in tool set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cymbalair/assistant/internal/domain"
)

// Result is the outcome of a tool invocation. Query carries the backend's
// query diagnostic when the tool surfaced one.
type Result struct {
	Payload json.RawMessage
	Query   string
}

// ExecutorFunc runs a tool against its backend. The identity is the
// signed-in user of the session, nil when nobody is signed in.
type ExecutorFunc func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error)

// Definition describes a tool to the model.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Registry stores tool executors and definitions keyed by tool name.
type Registry struct {
	mu          sync.RWMutex
	executors   map[string]ExecutorFunc
	definitions map[string]Definition
	order       []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		executors:   make(map[string]ExecutorFunc),
		definitions: make(map[string]Definition),
	}
}

// Register adds a tool definition and its executor.
func (r *Registry) Register(def Definition, exec ExecutorFunc) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[def.Name]; exists {
		return fmt.Errorf("executor already registered for %s", def.Name)
	}
	r.executors[def.Name] = exec
	r.definitions[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister adds a tool or panics. Used for built-in wiring at startup.
func (r *Registry) MustRegister(def Definition, exec ExecutorFunc) {
	if err := r.Register(def, exec); err != nil {
		panic(err)
	}
}

// Definitions returns all tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.definitions[name])
	}
	return defs
}

// Invoke runs the executor for the tool name. An unregistered name yields a
// *domain.UnknownToolError; an executor failure yields a
// *domain.ToolExecutionError wrapping the cause.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
	if name == "" {
		return nil, &domain.UnknownToolError{Name: name}
	}
	r.mu.RLock()
	exec := r.executors[name]
	r.mu.RUnlock()
	if exec == nil {
		return nil, &domain.UnknownToolError{Name: name}
	}
	result, err := exec(ctx, args, identity)
	if err != nil {
		return nil, &domain.ToolExecutionError{Name: name, Err: err}
	}
	return result, nil
}
