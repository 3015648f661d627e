package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyInsertTicket(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	needed, err := engine.RequiresConfirmation(ctx, "insert_ticket", map[string]interface{}{
		"airline":       "CY",
		"flight_number": "888",
	}, "user@example.com")
	assert.NoError(t, err)
	assert.True(t, needed)
}

func TestDefaultPolicyReadOnlyTools(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	for _, name := range []string{"search_flights_by_number", "list_flights", "search_amenities", "list_tickets"} {
		needed, err := engine.RequiresConfirmation(ctx, name, nil, "")
		assert.NoError(t, err)
		assert.False(t, needed, "tool %s should not need confirmation", name)
	}
}

func TestDefaultPolicyUnknownTool(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	needed, err := engine.RequiresConfirmation(ctx, "no.such.tool", nil, "")
	assert.NoError(t, err)
	assert.False(t, needed)
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	custom := `
package confirmation

default decision = "allow"

decision = "require_confirmation" {
	input.tool_name == "insert_ticket"
}

decision = "require_confirmation" {
	input.tool_name == "cancel_ticket"
}
`
	engine, err := NewEngine(ctx, custom)
	require.NoError(t, err)

	needed, err := engine.RequiresConfirmation(ctx, "cancel_ticket", nil, "")
	assert.NoError(t, err)
	assert.True(t, needed)
}
