// Package retrieval provides the client for the flight data retrieval service.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Envelope is the common response shape of every retrieval endpoint. Trace
// carries the backend's query diagnostic (typically the SQL it ran).
type Envelope struct {
	Result json.RawMessage `json:"result"`
	Trace  string          `json:"trace,omitempty"`
}

// Client talks to the retrieval service over HTTP. A single client is shared
// across all sessions; the per-request user token is passed per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new retrieval client with a pooled transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// SearchAirports lists airports matching any of country, city, or name.
// Empty criteria are omitted from the request.
func (c *Client) SearchAirports(ctx context.Context, token, country, city, name string) (*Envelope, error) {
	params := url.Values{}
	setNonEmpty(params, "country", country)
	setNonEmpty(params, "city", city)
	setNonEmpty(params, "name", name)
	return c.get(ctx, token, "/airports/search", params)
}

// SearchFlightsByNumber looks up flights by airline code and flight number.
func (c *Client) SearchFlightsByNumber(ctx context.Context, token, airline, flightNumber string) (*Envelope, error) {
	params := url.Values{}
	params.Set("airline", airline)
	params.Set("flight_number", flightNumber)
	return c.get(ctx, token, "/flights/search", params)
}

// ListFlights lists flights matching departure airport, arrival airport, and
// departure date. Empty criteria are omitted.
func (c *Client) ListFlights(ctx context.Context, token, departureAirport, arrivalAirport, date string) (*Envelope, error) {
	params := url.Values{}
	setNonEmpty(params, "departure_airport", departureAirport)
	setNonEmpty(params, "arrival_airport", arrivalAirport)
	setNonEmpty(params, "date", date)
	return c.get(ctx, token, "/flights/search", params)
}

// SearchAmenities runs a semantic search over airport amenities, optionally
// filtered by operating hours.
func (c *Client) SearchAmenities(ctx context.Context, token, query, openTime, openDay string) (*Envelope, error) {
	params := url.Values{}
	params.Set("top_k", "5")
	params.Set("query", query)
	setNonEmpty(params, "open_time", openTime)
	setNonEmpty(params, "open_day", openDay)
	return c.get(ctx, token, "/amenities/search", params)
}

// SearchPolicies runs a semantic search over airline policy documents.
func (c *Client) SearchPolicies(ctx context.Context, token, query string) (*Envelope, error) {
	params := url.Values{}
	params.Set("top_k", "5")
	params.Set("query", query)
	return c.get(ctx, token, "/policies/search", params)
}

// TicketInfo identifies a concrete flight for booking.
type TicketInfo struct {
	Airline          string `json:"airline"`
	FlightNumber     string `json:"flight_number"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
}

// ValidateTicket checks that a flight matching the given booking details
// exists. A nil Result in the envelope means no matching flight.
func (c *Client) ValidateTicket(ctx context.Context, token, airline, flightNumber, departureAirport, departureTime string) (*Envelope, error) {
	params := url.Values{}
	params.Set("airline", airline)
	params.Set("flight_number", flightNumber)
	params.Set("departure_airport", departureAirport)
	params.Set("departure_time", departureTime)
	return c.get(ctx, token, "/tickets/validate", params)
}

// InsertTicket books the given flight for the signed-in user.
func (c *Client) InsertTicket(ctx context.Context, token string, ticket TicketInfo) (*Envelope, error) {
	params := url.Values{}
	params.Set("airline", ticket.Airline)
	params.Set("flight_number", ticket.FlightNumber)
	params.Set("departure_airport", ticket.DepartureAirport)
	params.Set("arrival_airport", ticket.ArrivalAirport)
	params.Set("departure_time", strings.ReplaceAll(ticket.DepartureTime, "T", " "))
	params.Set("arrival_time", strings.ReplaceAll(ticket.ArrivalTime, "T", " "))
	return c.do(ctx, token, http.MethodPost, "/tickets/insert", params)
}

// ListTickets lists the signed-in user's booked tickets.
func (c *Client) ListTickets(ctx context.Context, token string) (*Envelope, error) {
	return c.get(ctx, token, "/tickets/list", url.Values{})
}

func (c *Client) get(ctx context.Context, token, path string, params url.Values) (*Envelope, error) {
	return c.do(ctx, token, http.MethodGet, path, params)
}

func (c *Client) do(ctx context.Context, token, method, path string, params url.Values) (*Envelope, error) {
	u := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("User-Id-Token", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval API error [%d]: %s", resp.StatusCode, string(body))
	}

	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &envelope, nil
}

func setNonEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
