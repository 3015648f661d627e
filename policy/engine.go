// Package policy decides whether a tool call needs explicit user confirmation
// before it may execute.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the policy.
const (
	DecisionAllow               = "allow"
	DecisionRequireConfirmation = "require_confirmation"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.confirmation.decision"),
		rego.Module("confirmation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for a tool call.
// Input keys: tool_name, args, user.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// Unknown tool names fall through to allow.
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// RequiresConfirmation reports whether a tool call must be confirmed by the
// user before it runs.
func (e *Engine) RequiresConfirmation(ctx context.Context, toolName string, args map[string]interface{}, user string) (bool, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	decision, err := e.Evaluate(ctx, map[string]interface{}{
		"tool_name": toolName,
		"args":      args,
		"user":      user,
	})
	if err != nil {
		return false, err
	}
	return decision == DecisionRequireConfirmation, nil
}

// DefaultPolicy is the default policy content. Booking a ticket is the one
// mutating tool in the set and always needs the user's explicit go-ahead.
const DefaultPolicy = `
package confirmation

default decision = "allow"

decision = "require_confirmation" {
	input.tool_name == "insert_ticket"
}
`
