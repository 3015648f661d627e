package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchAirports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/airports/search", r.URL.Path)
		assert.Equal(t, "San Francisco", r.URL.Query().Get("city"))
		// Empty criteria are omitted entirely.
		assert.False(t, r.URL.Query().Has("country"))
		assert.Equal(t, "Bearer tok", r.Header.Get("User-Id-Token"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": []map[string]string{{"iata": "SFO"}},
			"trace":  "SELECT * FROM airports",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	env, err := client.SearchAirports(context.Background(), "tok", "", "San Francisco", "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM airports", env.Trace)
	assert.Contains(t, string(env.Result), "SFO")
}

func TestValidateTicketNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets/validate", r.URL.Path)
		assert.Equal(t, "CY", r.URL.Query().Get("airline"))
		assert.Equal(t, "2024-01-01 00:00:00", r.URL.Query().Get("departure_time"))
		json.NewEncoder(w).Encode(map[string]interface{}{"result": nil})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	env, err := client.ValidateTicket(context.Background(), "", "CY", "888", "SFO", "2024-01-01 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, "null", string(env.Result))
}

func TestInsertTicketPostsParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tickets/insert", r.URL.Path)
		// T-separated datetimes are normalized on the wire.
		assert.Equal(t, "2024-01-01 06:00:00", r.URL.Query().Get("departure_time"))
		json.NewEncoder(w).Encode(map[string]interface{}{"result": nil})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.InsertTicket(context.Background(), "tok", TicketInfo{
		Airline:          "CY",
		FlightNumber:     "888",
		DepartureAirport: "SFO",
		ArrivalAirport:   "SEA",
		DepartureTime:    "2024-01-01T06:00:00",
		ArrivalTime:      "2024-01-01T09:00:00",
	})
	require.NoError(t, err)
}

func TestRetrievalAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.ListTickets(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval API error [500]")
}
