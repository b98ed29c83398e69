package core

import "encoding/json"

// MessageKind classifies who authored a message.
type MessageKind string

const (
	// MessageKindUser marks input delivered on behalf of the end user.
	MessageKindUser MessageKind = "user"
	// MessageKindAssistant marks output produced by the reasoning backend
	// (text replies and tool-call requests).
	MessageKindAssistant MessageKind = "assistant"
	// MessageKindTool marks tool execution results.
	MessageKindTool MessageKind = "tool"
)

// Message is one entry in an agent's history: a kind plus an ordered sequence
// of parts. After it is appended to a history it must be treated as
// immutable; ordering is the total order of processing.
type Message struct {
	Kind  MessageKind
	Parts []Part
}

// NewUserMessage creates a user-kind message with a single text part.
func NewUserMessage(text string) Message {
	return Message{Kind: MessageKindUser, Parts: []Part{TextPart{Content: text}}}
}

// NewAssistantText creates an assistant-kind message with a single text part.
func NewAssistantText(text string) Message {
	return Message{Kind: MessageKindAssistant, Parts: []Part{TextPart{Content: text}}}
}

// NewToolCallMessage wraps one or more tool-call parts as an assistant message.
func NewToolCallMessage(calls ...ToolCallPart) Message {
	parts := make([]Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, c)
	}
	return Message{Kind: MessageKindAssistant, Parts: parts}
}

// NewToolReturnMessage wraps a tool-return part as a tool-kind message.
func NewToolReturnMessage(ret ToolReturnPart) Message {
	return Message{Kind: MessageKindTool, Parts: []Part{ret}}
}

// ToolCalls returns any tool-call parts preserving their original order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolReturns returns any tool-return parts preserving their original order.
func (m Message) ToolReturns() []ToolReturnPart {
	var returns []ToolReturnPart
	for _, p := range m.Parts {
		if tr, ok := p.(ToolReturnPart); ok {
			returns = append(returns, tr)
		}
	}
	return returns
}

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var text string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			text += tp.Content
		}
	}
	return text
}

// messageEnvelope mirrors Message with serializable part envelopes.
type messageEnvelope struct {
	Kind  MessageKind    `json:"kind"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON serializes the message with type-tagged part envelopes so the
// polymorphic Parts slice survives a round trip through a snapshot or the
// HTTP surface.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{Kind: m.Kind, Parts: make([]partEnvelope, 0, len(m.Parts))}
	for _, p := range m.Parts {
		env.Parts = append(env.Parts, envelopeOf(p))
	}
	return json.Marshal(env)
}

// UnmarshalJSON restores a message from its envelope form. An unknown part
// kind fails the whole message; callers translate that into ErrCorrupt.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	parts := make([]Part, 0, len(env.Parts))
	for _, pe := range env.Parts {
		p, err := partOf(pe)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	m.Kind = env.Kind
	m.Parts = parts
	return nil
}
