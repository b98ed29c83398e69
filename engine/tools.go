package engine

import (
	"context"

	"github.com/cortexstack/agency/tool"
)

// agencyTools builds the coordination tools every agent can call to operate
// on its own agency: spawning a new agent and conversing with another agent
// mid-turn. A runtime messaging itself is rejected with core.ErrBusy by the
// dispatch gate, so the tool round records an error return instead of
// deadlocking.
func agencyTools(s *Supervisor) []tool.Tool {
	createAgent := tool.NewFunctionTool(
		"create_agent",
		"Create a new agent in the agency. Returns the new agent's id.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Display name for the new agent",
				},
				"instruction": map[string]any{
					"type":        "string",
					"description": "System instruction defining the agent's role",
				},
			},
			"required": []any{"name", "instruction"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			instruction, _ := args["instruction"].(string)
			state, err := s.CreateAgent(ctx, name, instruction)
			if err != nil {
				return nil, err
			}
			return map[string]any{"agent_id": state.ID, "name": state.Name}, nil
		},
	)

	messageAgent := tool.NewFunctionTool(
		"message_agent",
		"Send a message to another agent and wait for its reply.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent_id": map[string]any{
					"type":        "string",
					"description": "Id of the agent to message",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "Message text to deliver",
				},
			},
			"required": []any{"agent_id", "message"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id, _ := args["agent_id"].(string)
			message, _ := args["message"].(string)
			reply, err := s.Dispatch(ctx, id, message)
			if err != nil {
				return nil, err
			}
			return map[string]any{"agent_id": id, "reply": reply}, nil
		},
	)

	return []tool.Tool{createAgent, messageAgent}
}
