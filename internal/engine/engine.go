// Package engine runs the dialog state machine: model turns, tool dispatch,
// and the confirmation gate for booking actions.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cymbalair/assistant/internal/domain"
	"github.com/cymbalair/assistant/internal/tools"
)

// ToolInvoker runs named tools on behalf of a session.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}, identity *domain.UserIdentity) (*tools.Result, error)
}

// ConfirmationPolicy decides whether a tool call needs the user's explicit
// go-ahead before it may execute.
type ConfirmationPolicy interface {
	RequiresConfirmation(ctx context.Context, toolName string, args map[string]interface{}, user string) (bool, error)
}

// StepInput is one caller signal into the state machine. Exactly one of
// UserText, Confirm, or Decline is set.
type StepInput struct {
	UserText string
	Confirm  bool
	Decline  bool
}

// StepResult is the outcome of one step. Confirmation is set when the step
// parked a pending action awaiting the user's decision.
type StepResult struct {
	Output       string
	Trace        []domain.TraceEntry
	Confirmation *domain.Confirmation
}

// Engine drives one session's conversation. It mutates the passed-in state
// (history, pending action); persisting the result is the caller's job.
type Engine struct {
	gateway  ModelGateway
	invoker  ToolInvoker
	policy   ConfirmationPolicy
	maxTurns int
	now      func() time.Time
}

const (
	maxTurnsReply    = "Sorry, need more steps to process this request."
	confirmPrompt    = "Please confirm if you would like to book the ticket."
	confirmedText    = "Looks good to me. Book it!"
	declinedText     = "I changed my mind. Decline ticket booking."
	bookedReply      = "Your flight has been successfully booked."
	actionDoneReply  = "The requested action has been completed."
	validateToolName = "validate_ticket"
	insertToolName   = "insert_ticket"
)

// NewEngine creates a dialog engine. maxTurns bounds the number of model
// turns within a single step.
func NewEngine(gateway ModelGateway, invoker ToolInvoker, policy ConfirmationPolicy, maxTurns int) *Engine {
	if maxTurns <= 0 {
		maxTurns = 3
	}
	return &Engine{
		gateway:  gateway,
		invoker:  invoker,
		policy:   policy,
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// Step advances the conversation by one caller signal.
//
// Infrastructure failures (model unavailable, policy evaluation) abort the
// step with an error and leave no guarantee about the in-memory state; the
// caller must not persist it. Tool-level failures are absorbed into the
// conversation and never abort a step.
func (e *Engine) Step(ctx context.Context, state *domain.ConversationState, input StepInput) (*StepResult, error) {
	switch {
	case input.Confirm:
		return e.stepConfirm(ctx, state)
	case input.Decline:
		return e.stepDecline(ctx, state)
	default:
		return e.stepChat(ctx, state, input.UserText)
	}
}

func (e *Engine) stepChat(ctx context.Context, state *domain.ConversationState, userText string) (*StepResult, error) {
	// A new message while a confirmation is pending abandons the pending
	// action. Single slot, most recent request wins.
	state.Pending = nil
	state.History = append(state.History, e.newMessage(domain.RoleUser, userText))
	return e.runLoop(ctx, state)
}

func (e *Engine) stepDecline(ctx context.Context, state *domain.ConversationState) (*StepResult, error) {
	if state.Pending == nil {
		return nil, domain.ErrNoPendingAction
	}
	state.Pending = nil
	state.History = append(state.History, e.newMessage(domain.RoleUser, declinedText))
	return e.runLoop(ctx, state)
}

// stepConfirm executes the pending action exactly once. The pending slot is
// cleared whether or not execution succeeds; a failed booking is narrated,
// never retried implicitly.
func (e *Engine) stepConfirm(ctx context.Context, state *domain.ConversationState) (*StepResult, error) {
	if state.Pending == nil {
		return nil, domain.ErrNoPendingAction
	}
	call := state.Pending.Call
	state.Pending = nil

	state.History = append(state.History, e.newMessage(domain.RoleUser, confirmedText))

	result := &StepResult{}
	invoked, err := e.invoker.Invoke(ctx, call.Name, call.Args, state.User)

	var output string
	switch {
	case err != nil:
		output = fmt.Sprintf("The booking could not be completed: %v. Please try again later.", err)
		result.Trace = append(result.Trace, domain.TraceEntry{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Results:    err.Error(),
		})
	default:
		payload := payloadString(invoked.Payload)
		switch {
		case payload != "" && payload != "null":
			output = payload
		case call.Name == insertToolName:
			output = bookedReply
		default:
			output = actionDoneReply
		}
		result.Trace = append(result.Trace, domain.TraceEntry{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Results:    payload,
			Query:      invoked.Query,
		})
	}

	state.History = append(state.History, e.newMessage(domain.RoleAssistant, output))
	result.Output = output
	return result, nil
}

// runLoop alternates model turns and tool dispatch until the model produces a
// plain reply, a confirmation gate fires, or the turn limit is reached.
func (e *Engine) runLoop(ctx context.Context, state *domain.ConversationState) (*StepResult, error) {
	result := &StepResult{}

	for turn := 0; turn < e.maxTurns; turn++ {
		msg, err := e.gateway.Generate(ctx, state.History)
		if err != nil {
			return nil, err
		}
		state.History = append(state.History, *msg)

		if len(msg.ToolCalls) == 0 {
			result.Output = msg.Content
			return result, nil
		}

		gated, err := e.findGatedCall(ctx, state, msg.ToolCalls)
		if err != nil {
			return nil, err
		}
		if gated != nil {
			done, err := e.gateBooking(ctx, state, *gated, result)
			if err != nil {
				return nil, err
			}
			if done {
				return result, nil
			}
			// Validation rejected the booking; give the model the tool
			// message and let it respond.
			continue
		}

		if err := e.dispatchTools(ctx, state, msg.ToolCalls, result); err != nil {
			return nil, err
		}
	}

	reply := e.newMessage(domain.RoleAssistant, maxTurnsReply)
	state.History = append(state.History, reply)
	result.Output = maxTurnsReply
	return result, nil
}

// findGatedCall returns the first tool call the policy gates behind a
// confirmation, or nil when the whole turn may run directly.
func (e *Engine) findGatedCall(ctx context.Context, state *domain.ConversationState, calls []domain.ToolCall) (*domain.ToolCall, error) {
	user := ""
	if state.User != nil {
		user = state.User.Email
	}
	for i := range calls {
		required, err := e.policy.RequiresConfirmation(ctx, calls[i].Name, calls[i].Args, user)
		if err != nil {
			return nil, fmt.Errorf("policy evaluation failed: %w", err)
		}
		if required {
			return &calls[i], nil
		}
	}
	return nil, nil
}

// gateBooking validates a gated booking call and, on success, parks it as the
// pending action. Returns true when the step is finished (confirmation
// emitted), false when validation pushed a tool message back to the model.
func (e *Engine) gateBooking(ctx context.Context, state *domain.ConversationState, call domain.ToolCall, result *StepResult) (bool, error) {
	if call.Name != insertToolName {
		// Gated tools other than booking park as-is with the model's args.
		return true, e.parkPending(state, call, call.Args, result)
	}

	if msg := missingBookingField(call.Args); msg != "" {
		e.absorbToolMessage(state, call, msg, "", result)
		return false, nil
	}

	departureDate, ok := normalizeDepartureDate(stringArg(call.Args, "departure_time"))
	if !ok {
		e.absorbToolMessage(state, call,
			"departure_time is in an invalid format. Make sure it's in the format '2006-01-02 15:04:05'.", "", result)
		return false, nil
	}

	validated, err := e.invoker.Invoke(ctx, validateToolName, map[string]interface{}{
		"airline":           stringArg(call.Args, "airline"),
		"flight_number":     stringArg(call.Args, "flight_number"),
		"departure_airport": stringArg(call.Args, "departure_airport"),
		"departure_time":    departureDate + " 00:00:00",
	}, state.User)
	if err != nil {
		e.absorbToolMessage(state, call, err.Error(), "", result)
		return false, nil
	}

	resolved, ok := parseFlightInfo(validated.Payload)
	if !ok {
		noMatch := fmt.Sprintf(
			"There seems to be no flight %s%s on %s from %s. Ask the user to check the flight information.",
			stringArg(call.Args, "airline"), stringArg(call.Args, "flight_number"),
			departureDate, stringArg(call.Args, "departure_airport"))
		e.absorbToolMessage(state, call, noMatch, validated.Query, result)
		return false, nil
	}

	result.Trace = append(result.Trace, domain.TraceEntry{
		ToolCallID: call.ID,
		ToolName:   validateToolName,
		Results:    payloadString(validated.Payload),
		Query:      validated.Query,
	})
	return true, e.parkPending(state, call, resolved, result)
}

// parkPending stores the pending action with fully resolved args and emits
// the confirmation reply.
func (e *Engine) parkPending(state *domain.ConversationState, call domain.ToolCall, args map[string]interface{}, result *StepResult) error {
	pendingCall := domain.ToolCall{
		ID:   newToolCallID(),
		Name: call.Name,
		Args: args,
	}
	state.Pending = &domain.PendingAction{Call: pendingCall, CreatedAt: e.now()}
	state.History = append(state.History, e.newMessage(domain.RoleAssistant, confirmPrompt))
	result.Output = confirmPrompt
	result.Confirmation = &domain.Confirmation{Tool: pendingCall.Name, Params: args}
	return nil
}

// dispatchTools fans the turn's tool calls out concurrently and reassembles
// the tool messages in the model's original call order.
func (e *Engine) dispatchTools(ctx context.Context, state *domain.ConversationState, calls []domain.ToolCall, result *StepResult) error {
	type outcome struct {
		content string
		query   string
	}
	outcomes := make([]outcome, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i := range calls {
		i := i
		call := calls[i]
		g.Go(func() error {
			invoked, err := e.invoker.Invoke(gctx, call.Name, call.Args, state.User)
			if err != nil {
				var unknown *domain.UnknownToolError
				var execErr *domain.ToolExecutionError
				if errors.As(err, &unknown) || errors.As(err, &execErr) {
					outcomes[i] = outcome{content: err.Error()}
					return nil
				}
				return err
			}
			outcomes[i] = outcome{content: payloadString(invoked.Payload), query: invoked.Query}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, call := range calls {
		toolMsg := e.newMessage(domain.RoleTool, outcomes[i].content)
		toolMsg.ToolCallID = call.ID
		toolMsg.ToolName = call.Name
		state.History = append(state.History, toolMsg)
		result.Trace = append(result.Trace, domain.TraceEntry{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Results:    outcomes[i].content,
			Query:      outcomes[i].query,
		})
	}
	return nil
}

// absorbToolMessage feeds a tool-level problem back to the model as the
// result of the call that caused it.
func (e *Engine) absorbToolMessage(state *domain.ConversationState, call domain.ToolCall, content, query string, result *StepResult) {
	toolMsg := e.newMessage(domain.RoleTool, content)
	toolMsg.ToolCallID = call.ID
	toolMsg.ToolName = call.Name
	state.History = append(state.History, toolMsg)
	result.Trace = append(result.Trace, domain.TraceEntry{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Results:    content,
		Query:      query,
	})
}

func (e *Engine) newMessage(role domain.Role, content string) domain.Message {
	return domain.Message{
		MessageID: newMessageID(),
		Role:      role,
		Content:   content,
		CreatedAt: e.now(),
	}
}

func missingBookingField(args map[string]interface{}) string {
	if stringArg(args, "airline") == "" || stringArg(args, "flight_number") == "" {
		return "Ask the user which flight they are interested in booking. We need to know the airline and flight number."
	}
	if stringArg(args, "departure_airport") == "" {
		return "Ask the user where they are flying from. We need to know the departure airport."
	}
	if stringArg(args, "departure_time") == "" {
		return "Ask the user what date the flight is. We need to know the departure date."
	}
	return ""
}

// normalizeDepartureDate accepts the datetime formats models produce and
// returns the departure date portion.
func normalizeDepartureDate(departureTime string) (string, bool) {
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, departureTime); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseFlightInfo extracts the resolved booking args from a validation
// payload. A null or empty payload means no matching flight.
func parseFlightInfo(payload json.RawMessage) (map[string]interface{}, bool) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err == nil {
		return pickFlightFields(obj), true
	}

	var list []map[string]interface{}
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		return pickFlightFields(list[0]), true
	}
	return nil, false
}

func pickFlightFields(obj map[string]interface{}) map[string]interface{} {
	fields := []string{"airline", "flight_number", "departure_airport", "arrival_airport", "departure_time", "arrival_time"}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = v
		}
	}
	return out
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func payloadString(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return string(payload)
}

func newMessageID() string {
	return "msg_" + uuid.New().String()
}

func newToolCallID() string {
	return "tc_" + uuid.New().String()
}
