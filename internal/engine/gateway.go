package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cymbalair/assistant/internal/adapter/llm"
	"github.com/cymbalair/assistant/internal/domain"
	"github.com/cymbalair/assistant/internal/tools"
)

// ModelGateway produces the next assistant turn for a conversation history.
type ModelGateway interface {
	Generate(ctx context.Context, history []domain.Message) (*domain.Message, error)
}

const systemPrompt = `The Cymbal Air Customer Service Assistant helps customers of Cymbal Air with their travel needs.

Cymbal Air (airline unique two letter identifier as CY) is a passenger airline offering convenient flights to many cities around the world from its
hub in San Francisco. Cymbal Air takes pride in using the latest technology to offer the best customer
service!

Cymbal Air Customer Service Assistant (or just "Assistant" for short) is designed to assist
with a wide range of tasks, from answering simple questions to complex multi-query questions that
require passing results from one query to another. Using the latest AI models, Assistant is able to
generate human-like text based on the input it receives, allowing it to engage in natural-sounding
conversations and provide responses that are coherent and relevant to the topic at hand.

Assistant is a powerful tool that can help answer a wide range of questions pertaining to travel on Cymbal Air
as well as ammenities of San Francisco Airport.`

// LLMGateway implements ModelGateway over an OpenAI-compatible client.
type LLMGateway struct {
	client llm.LLMClient
	model  string
	defs   []tools.Definition
	now    func() time.Time
}

// NewLLMGateway creates a gateway that exposes the given tool definitions to
// the model on every request.
func NewLLMGateway(client llm.LLMClient, model string, defs []tools.Definition) *LLMGateway {
	return &LLMGateway{
		client: client,
		model:  model,
		defs:   defs,
		now:    time.Now,
	}
}

var _ ModelGateway = (*LLMGateway)(nil)

// Generate asks the model for the next assistant turn. Backend failures wrap
// domain.ErrModelUnavailable so callers can abort without touching state.
func (g *LLMGateway) Generate(ctx context.Context, history []domain.Message) (*domain.Message, error) {
	req := &llm.ChatCompletionRequest{
		Model:    g.model,
		Messages: g.buildMessages(history),
		Tools:    g.buildTools(),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrModelUnavailable)
	}

	choice := resp.Choices[0].Message
	msg := &domain.Message{
		MessageID: newMessageID(),
		Role:      domain.RoleAssistant,
		Content:   choice.Content,
		CreatedAt: g.now(),
	}
	for _, tc := range choice.ToolCalls {
		call := domain.ToolCall{ID: tc.ID, Name: tc.Function.Name}
		if call.ID == "" {
			call.ID = newToolCallID()
		}
		if tc.Function.Arguments != "" {
			// A malformed argument blob becomes an empty arg set; the tool
			// surfaces the problem as a tool message, not a hard failure.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &call.Args)
		}
		msg.ToolCalls = append(msg.ToolCalls, call)
	}
	return msg, nil
}

func (g *LLMGateway) buildMessages(history []domain.Message) []llm.ChatMessage {
	// Tool calls that never got a result message (a booking parked for
	// confirmation and then confirmed or declined, or ungated calls sharing
	// that turn) must not reach the backend: the chat-completions contract
	// requires every assistant tool_calls entry to be followed by a tool
	// result, and strict backends reject the request otherwise.
	answered := make(map[string]bool)
	for _, m := range history {
		if m.Role == domain.RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	datetime := g.now().Format("Monday, 01/02/2006, 15:04:05")
	msgs := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt + "\n\nToday's date and current time is " + datetime + "."},
	}
	for _, m := range history {
		cm := llm.ChatMessage{Role: string(m.Role), Content: m.Content}
		switch m.Role {
		case domain.RoleAssistant:
			for _, tc := range m.ToolCalls {
				if !answered[tc.ID] {
					continue
				}
				args, _ := json.Marshal(tc.Args)
				cm.ToolCalls = append(cm.ToolCalls, llm.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: llm.ToolCallFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			if len(m.ToolCalls) > 0 && len(cm.ToolCalls) == 0 && cm.Content == "" {
				continue
			}
		case domain.RoleTool:
			cm.ToolCallID = m.ToolCallID
			cm.Name = m.ToolName
		}
		msgs = append(msgs, cm)
	}
	return msgs
}

func (g *LLMGateway) buildTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(g.defs))
	for _, d := range g.defs {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
