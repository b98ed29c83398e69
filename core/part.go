package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set, so
// every consumer can switch exhaustively over the three variants.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Content string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ToolCallPart is a request, produced by the reasoning backend, to invoke a
// named tool. ToolCallID is unique within an agent's history and links the
// call to its eventual ToolReturnPart.
type ToolCallPart struct {
	ToolName   string          // Tool name (snake_case)
	ToolCallID string          // Backend-assigned correlation id
	Args       json.RawMessage // Serialized JSON argument payload
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolReturnPart records the outcome of a tool call. Exactly one return is
// appended for every accepted call, carrying the identical ToolCallID. A
// failed or cancelled execution sets IsError with a descriptive Content
// rather than surfacing an error to the caller.
type ToolReturnPart struct {
	ToolName   string
	ToolCallID string
	Content    string
	IsError    bool
}

// isPart implements the Part interface for ToolReturnPart.
func (ToolReturnPart) isPart() {}

// Part kind tags used in the serialized envelope form.
const (
	partKindText       = "text"
	partKindToolCall   = "tool-call"
	partKindToolReturn = "tool-return"
)

// partEnvelope is the wire/persistence form of a Part. The Kind tag selects
// the variant; unused fields are omitted.
type partEnvelope struct {
	Kind       string          `json:"kind"`
	Content    string          `json:"content,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

func envelopeOf(p Part) partEnvelope {
	switch part := p.(type) {
	case TextPart:
		return partEnvelope{Kind: partKindText, Content: part.Content}
	case ToolCallPart:
		return partEnvelope{
			Kind:       partKindToolCall,
			ToolName:   part.ToolName,
			ToolCallID: part.ToolCallID,
			Args:       part.Args,
		}
	case ToolReturnPart:
		return partEnvelope{
			Kind:       partKindToolReturn,
			ToolName:   part.ToolName,
			ToolCallID: part.ToolCallID,
			Content:    part.Content,
			IsError:    part.IsError,
		}
	default:
		// New Part variants must be added here and in partOf.
		return partEnvelope{Kind: "unknown"}
	}
}

func partOf(env partEnvelope) (Part, error) {
	switch env.Kind {
	case partKindText:
		return TextPart{Content: env.Content}, nil
	case partKindToolCall:
		return ToolCallPart{ToolName: env.ToolName, ToolCallID: env.ToolCallID, Args: env.Args}, nil
	case partKindToolReturn:
		return ToolReturnPart{
			ToolName:   env.ToolName,
			ToolCallID: env.ToolCallID,
			Content:    env.Content,
			IsError:    env.IsError,
		}, nil
	default:
		return nil, &UnknownPartKindError{Kind: env.Kind}
	}
}

// UnknownPartKindError reports a serialized part whose kind tag matches no
// known variant, typically a snapshot written by a newer version.
type UnknownPartKindError struct{ Kind string }

func (e *UnknownPartKindError) Error() string {
	return fmt.Sprintf("unknown part kind %q", e.Kind)
}
