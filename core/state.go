package core

// AgentState is the serialized view of one agent: identity plus its full
// ordered message history. It is the shape exposed by the HTTP surface and
// captured inside snapshots.
type AgentState struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Instruction    string    `json:"instruction,omitempty"`
	MessageHistory []Message `json:"message_history"`
}

// AgencyState is an immutable copy of an agency's agents in roster order.
// The running flag is deliberately absent: a persisted agency is by
// definition not running.
type AgencyState struct {
	Agents []AgentState `json:"agents"`
}

// Agent returns the state for the given agent id.
func (s AgencyState) Agent(id string) (AgentState, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentState{}, false
}
