package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageAccessors(t *testing.T) {
	msg := Message{
		Kind: MessageKindAssistant,
		Parts: []Part{
			TextPart{Content: "thinking "},
			ToolCallPart{ToolName: "shell", ToolCallID: "c1", Args: json.RawMessage(`{"command":"ls"}`)},
			TextPart{Content: "aloud"},
		},
	}

	assert.Equal(t, "thinking aloud", msg.Text())

	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "shell", calls[0].ToolName)
	assert.Equal(t, "c1", calls[0].ToolCallID)
	assert.Empty(t, msg.ToolReturns())
}

func TestMessageJSONRoundTrip(t *testing.T) {
	original := []Message{
		NewUserMessage("hello"),
		NewToolCallMessage(ToolCallPart{
			ToolName:   "shell",
			ToolCallID: "c1",
			Args:       json.RawMessage(`{"command":"uname"}`),
		}),
		NewToolReturnMessage(ToolReturnPart{
			ToolName:   "shell",
			ToolCallID: "c1",
			Content:    "Linux",
		}),
		NewToolReturnMessage(ToolReturnPart{
			ToolName:   "browser",
			ToolCallID: "c2",
			Content:    "tool browser not found",
			IsError:    true,
		}),
		NewAssistantText("done"),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored []Message
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, original, restored)
}

func TestMessageUnmarshalUnknownKind(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"kind":"assistant","parts":[{"kind":"hologram"}]}`), &msg)
	require.Error(t, err)

	var unknown *UnknownPartKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "hologram", unknown.Kind)
}
