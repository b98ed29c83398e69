package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortexstack/agency/core"
)

// ToolDefinition declaratively exposes a callable tool to the backend.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized backend input produced by an agent runtime.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt for the agent
	History      []core.Message   `json:"history"`      // Full ordered history as context
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Response is the backend's reply to a single request: either a final text
// part or one-or-more tool-call parts.
type Response struct {
	Parts []core.Part `json:"parts"`
}

// ToolCalls returns the tool-call parts of the response in order.
func (r Response) ToolCalls() []core.ToolCallPart {
	var calls []core.ToolCallPart
	for _, p := range r.Parts {
		if tc, ok := p.(core.ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text concatenates the text parts of the response.
func (r Response) Text() string {
	var text string
	for _, p := range r.Parts {
		if tp, ok := p.(core.TextPart); ok {
			text += tp.Content
		}
	}
	return text
}

// Info contains metadata about a backend implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "openai", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Backend is the minimal interface the agent runtime needs to drive
// generation. Generate must honor ctx cancellation; transient failures are
// the runtime's concern (it retries with backoff).
type Backend interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the backend implementation.
	Info() Info
}

// MockTurn scripts a single MockBackend reply: either a response or an error.
type MockTurn struct {
	Response Response
	Err      error
}

// MockBackend is a lightweight in-memory Backend useful for tests and
// examples. Scripted turns are consumed in order; once exhausted it echoes
// the last user text. Safe for concurrent use.
type MockBackend struct {
	mu       sync.Mutex
	info     Info
	turns    []MockTurn
	requests []Request
}

// NewMockBackend constructs a MockBackend with tool support enabled.
func NewMockBackend(name string) *MockBackend {
	return &MockBackend{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// QueueText scripts a plain text reply.
func (m *MockBackend) QueueText(text string) {
	m.queue(MockTurn{Response: Response{Parts: []core.Part{core.TextPart{Content: text}}}})
}

// QueueToolCalls scripts a reply requesting the given tool calls.
func (m *MockBackend) QueueToolCalls(calls ...core.ToolCallPart) {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, c)
	}
	m.queue(MockTurn{Response: Response{Parts: parts}})
}

// QueueError scripts a failed backend call.
func (m *MockBackend) QueueError(err error) { m.queue(MockTurn{Err: err}) }

func (m *MockBackend) queue(turn MockTurn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
}

// Requests returns a copy of every request seen so far, in order.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Backend. It consumes the next scripted turn, falling
// back to echoing the most recent user message.
func (m *MockBackend) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.turns) > 0 {
		turn := m.turns[0]
		m.turns = m.turns[1:]
		return turn.Response, turn.Err
	}

	var lastUser string
	for _, msg := range req.History {
		if msg.Kind == core.MessageKindUser {
			lastUser = msg.Text()
		}
	}
	reply := fmt.Sprintf("Mock response to: %s", lastUser)
	return Response{Parts: []core.Part{core.TextPart{Content: reply}}}, nil
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }
