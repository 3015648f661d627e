package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cymbalair/assistant/internal/adapter/retrieval"
	"github.com/cymbalair/assistant/internal/domain"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Registry {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewBuiltinRegistry(retrieval.NewClient(server.URL, 5*time.Second))
}

func writeResult(w http.ResponseWriter, result interface{}, trace string) {
	json.NewEncoder(w).Encode(map[string]interface{}{"result": result, "trace": trace})
}

func TestBuiltinDefinitionsComplete(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {})
	names := make(map[string]bool)
	for _, d := range r.Definitions() {
		names[d.Name] = true
		assert.NotEmpty(t, d.Description)
		assert.True(t, json.Valid(d.Parameters), "parameters for %s must be valid JSON", d.Name)
	}
	for _, expect := range []string{
		"search_airports", "search_flights_by_number", "list_flights",
		"search_amenities", "search_policies", "validate_ticket",
		"insert_ticket", "list_tickets",
	} {
		assert.True(t, names[expect], "missing tool %s", expect)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {})
	_, err := r.Invoke(context.Background(), "teleport", nil, nil)
	var unknown *domain.UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "teleport", unknown.Name)
}

func TestInvokeBackendFailure(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	_, err := r.Invoke(context.Background(), "search_policies", map[string]interface{}{"query": "bags"}, nil)
	var execErr *domain.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "search_policies", execErr.Name)
}

func TestSearchAirportsEmptyResult(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		writeResult(w, []interface{}{}, "SELECT * FROM airports")
	})
	res, err := r.Invoke(context.Background(), "search_airports", map[string]interface{}{"city": "Nowhere"}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(res.Payload), "no airports matching")
	assert.Equal(t, "SELECT * FROM airports", res.Query)
}

func TestListFlightsCapsLargeResults(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		writeResult(w, []map[string]string{
			{"flight": "CY 1"}, {"flight": "CY 2"}, {"flight": "CY 3"}, {"flight": "CY 4"},
		}, "")
	})
	res, err := r.Invoke(context.Background(), "list_flights", map[string]interface{}{"date": "2024-01-01"}, nil)
	require.NoError(t, err)

	var capped struct {
		TotalResults int               `json:"total_results"`
		FirstResults []json.RawMessage `json:"first_results"`
	}
	require.NoError(t, json.Unmarshal(res.Payload, &capped))
	assert.Equal(t, 4, capped.TotalResults)
	assert.Len(t, capped.FirstResults, 2)
}

func TestListTicketsRequiresIdentity(t *testing.T) {
	var backendCalled bool
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		backendCalled = true
	})

	res, err := r.Invoke(context.Background(), "list_tickets", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(res.Payload), "not signed in")
	assert.False(t, backendCalled)
}

func TestListTicketsForwardsToken(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/tickets/list", req.URL.Path)
		assert.Equal(t, "Bearer tok", req.Header.Get("User-Id-Token"))
		writeResult(w, []map[string]string{{"flight": "CY 888"}}, "SELECT * FROM tickets")
	})

	identity := &domain.UserIdentity{Token: "tok", Name: "Alice"}
	res, err := r.Invoke(context.Background(), "list_tickets", nil, identity)
	require.NoError(t, err)
	assert.Contains(t, string(res.Payload), "CY 888")
	assert.Equal(t, "SELECT * FROM tickets", res.Query)
}

func TestInsertTicketNullResultGetsBookingMessage(t *testing.T) {
	r := newTestBackend(t, func(w http.ResponseWriter, req *http.Request) {
		writeResult(w, nil, "INSERT INTO tickets")
	})

	identity := &domain.UserIdentity{Token: "tok"}
	res, err := r.Invoke(context.Background(), "insert_ticket", map[string]interface{}{
		"airline":           "CY",
		"flight_number":     "888",
		"departure_airport": "SFO",
		"departure_time":    "2024-01-01 06:00:00",
	}, identity)
	require.NoError(t, err)

	var msg string
	require.NoError(t, json.Unmarshal(res.Payload, &msg))
	assert.Equal(t, "Booking ticket on CY 888", msg)
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	def := Definition{Name: "x", Parameters: json.RawMessage(`{}`)}
	exec := func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		return &Result{}, nil
	}
	require.NoError(t, r.Register(def, exec))
	assert.Error(t, r.Register(def, exec))
}
