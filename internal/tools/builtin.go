package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cymbalair/assistant/internal/adapter/retrieval"
	"github.com/cymbalair/assistant/internal/domain"
)

// resultCap limits how many rows of a large search result are surfaced to the
// model verbatim.
const resultCap = 2

// NewBuiltinRegistry creates a registry with the Cymbal Air tool set wired to
// the retrieval service.
func NewBuiltinRegistry(client *retrieval.Client) *Registry {
	r := NewRegistry()

	r.MustRegister(Definition{
		Name: "search_airports",
		Description: "Use this tool to list all airports matching search criteria. " +
			"Takes at least one of country, city, name and returns all matching airports.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"country": {"type": "string", "description": "Country"},
				"city": {"type": "string", "description": "City"},
				"name": {"type": "string", "description": "Airport name"}
			}
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.SearchAirports(ctx, tokenOf(identity),
			stringArg(args, "country"), stringArg(args, "city"), stringArg(args, "name"))
		if err != nil {
			return nil, err
		}
		return cappedListResult(env, "There are no airports matching that query. Let the user know there are no results.")
	})

	r.MustRegister(Definition{
		Name: "search_flights_by_number",
		Description: "Use this tool to get information for a specific flight. " +
			"Takes an airline code and flight number and returns info on the flight.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"airline": {"type": "string", "description": "Airline unique 2 letter identifier"},
				"flight_number": {"type": "string", "description": "1 to 4 digit number"}
			},
			"required": ["airline", "flight_number"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.SearchFlightsByNumber(ctx, tokenOf(identity),
			stringArg(args, "airline"), stringArg(args, "flight_number"))
		if err != nil {
			return nil, err
		}
		return envelopeResult(env), nil
	})

	r.MustRegister(Definition{
		Name: "list_flights",
		Description: "Use this tool to list all flights matching search criteria. " +
			"Takes an arrival airport, a departure airport, or both, and a departure date.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"departure_airport": {"type": "string", "description": "Departure airport 3-letter code"},
				"arrival_airport": {"type": "string", "description": "Arrival airport 3-letter code"},
				"date": {"type": "string", "description": "Date of flight departure, in YYYY-MM-DD format"}
			},
			"required": ["date"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.ListFlights(ctx, tokenOf(identity),
			stringArg(args, "departure_airport"), stringArg(args, "arrival_airport"), stringArg(args, "date"))
		if err != nil {
			return nil, err
		}
		return cappedListResult(env, "There are no flights matching that query. Let the user know there are no results.")
	})

	r.MustRegister(Definition{
		Name: "search_amenities",
		Description: "Use this tool to search amenities by name or to recommend airport amenities at SFO. " +
			"If user provides flight info, use search_flights_by_number first to get the departure time, " +
			"and then use that as open_time to check amenity availability.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"},
				"open_time": {"type": "string", "description": "Time for filtering amenities by operating hours"},
				"open_day": {"type": "string", "description": "Day of the week for filtering amenities by operating hours"}
			},
			"required": ["query"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.SearchAmenities(ctx, tokenOf(identity),
			stringArg(args, "query"), stringArg(args, "open_time"), stringArg(args, "open_day"))
		if err != nil {
			return nil, err
		}
		return envelopeResult(env), nil
	})

	r.MustRegister(Definition{
		Name: "search_policies",
		Description: "Use this tool to search for cymbal air passenger policy. " +
			"Policy that are listed is unchangeable. You will not answer any questions outside of the policy.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"}
			},
			"required": ["query"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.SearchPolicies(ctx, tokenOf(identity), stringArg(args, "query"))
		if err != nil {
			return nil, err
		}
		return envelopeResult(env), nil
	})

	r.MustRegister(Definition{
		Name: "validate_ticket",
		Description: "Use this tool to check the details of a flight the user wants to book. " +
			"Takes an airline, flight number, departure airport and departure time and returns the matching flight.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"airline": {"type": "string", "description": "Airline unique 2 letter identifier"},
				"flight_number": {"type": "string", "description": "1 to 4 digit number"},
				"departure_airport": {"type": "string", "description": "Departure airport 3-letter code"},
				"departure_time": {"type": "string", "description": "Flight departure datetime"}
			},
			"required": ["airline", "flight_number", "departure_airport", "departure_time"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		env, err := client.ValidateTicket(ctx, tokenOf(identity),
			stringArg(args, "airline"), stringArg(args, "flight_number"),
			stringArg(args, "departure_airport"), stringArg(args, "departure_time"))
		if err != nil {
			return nil, err
		}
		return envelopeResult(env), nil
	})

	r.MustRegister(Definition{
		Name: "insert_ticket",
		Description: "Use this tool to book a flight ticket for the user. " +
			"Takes the full flight details and books the ticket.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"airline": {"type": "string", "description": "Airline unique 2 letter identifier"},
				"flight_number": {"type": "string", "description": "1 to 4 digit number"},
				"departure_airport": {"type": "string", "description": "Departure airport 3-letter code"},
				"arrival_airport": {"type": "string", "description": "Arrival airport 3-letter code"},
				"departure_time": {"type": "string", "description": "Flight departure datetime"},
				"arrival_time": {"type": "string", "description": "Flight arrival datetime"}
			},
			"required": ["airline", "flight_number", "departure_airport", "departure_time"]
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		if identity == nil {
			return messageResult("The user is not signed in. Ask the user to sign in to book a ticket."), nil
		}
		ticket := retrieval.TicketInfo{
			Airline:          stringArg(args, "airline"),
			FlightNumber:     stringArg(args, "flight_number"),
			DepartureAirport: stringArg(args, "departure_airport"),
			ArrivalAirport:   stringArg(args, "arrival_airport"),
			DepartureTime:    stringArg(args, "departure_time"),
			ArrivalTime:      stringArg(args, "arrival_time"),
		}
		env, err := client.InsertTicket(ctx, identity.Token, ticket)
		if err != nil {
			return nil, err
		}
		result := envelopeResult(env)
		if len(result.Payload) == 0 || string(result.Payload) == "null" {
			payload, _ := json.Marshal(fmt.Sprintf("Booking ticket on %s %s", ticket.Airline, ticket.FlightNumber))
			result.Payload = payload
		}
		return result, nil
	})

	r.MustRegister(Definition{
		Name:        "list_tickets",
		Description: "Use this tool to list the user's flight ticket bookings. Takes no input.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}, func(ctx context.Context, args map[string]interface{}, identity *domain.UserIdentity) (*Result, error) {
		if identity == nil {
			return messageResult("The user is not signed in. Ask the user to sign in to view their tickets."), nil
		}
		env, err := client.ListTickets(ctx, identity.Token)
		if err != nil {
			return nil, err
		}
		return envelopeResult(env), nil
	})

	return r
}

func tokenOf(identity *domain.UserIdentity) string {
	if identity == nil {
		return ""
	}
	return identity.Token
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key].(string)
	if !ok {
		return ""
	}
	return v
}

func envelopeResult(env *retrieval.Envelope) *Result {
	return &Result{Payload: env.Result, Query: env.Trace}
}

func messageResult(msg string) *Result {
	payload, _ := json.Marshal(msg)
	return &Result{Payload: payload}
}

// cappedListResult trims large result arrays to the first few rows plus a
// total count, and substitutes an instruction when the result set is empty.
func cappedListResult(env *retrieval.Envelope, emptyMsg string) (*Result, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(env.Result, &rows); err != nil {
		// Not an array, pass through untouched.
		return envelopeResult(env), nil
	}
	if len(rows) == 0 {
		res := messageResult(emptyMsg)
		res.Query = env.Trace
		return res, nil
	}
	if len(rows) <= resultCap {
		return envelopeResult(env), nil
	}
	capped := struct {
		TotalResults int               `json:"total_results"`
		FirstResults []json.RawMessage `json:"first_results"`
	}{
		TotalResults: len(rows),
		FirstResults: rows[:resultCap],
	}
	payload, err := json.Marshal(capped)
	if err != nil {
		return nil, err
	}
	return &Result{Payload: payload, Query: env.Trace}, nil
}
