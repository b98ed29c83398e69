package history

import (
	"fmt"
	"sync"

	"github.com/cortexstack/agency/core"
)

// Log is an in-memory append-only message log keyed by agent id. It is safe
// for concurrent access. Reads return defensive copies so callers can never
// mutate recorded history.
type Log struct {
	mu       sync.RWMutex
	messages map[string][]core.Message
}

// NewLog constructs an empty log.
func NewLog() *Log {
	return &Log{messages: make(map[string][]core.Message)}
}

// Register creates an empty history for the given agent id. Registering an
// already known id is a no-op so restored agents keep their messages.
func (l *Log) Register(agentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.messages[agentID]; !ok {
		l.messages[agentID] = []core.Message{}
	}
}

// Restore seeds an agent's history from a snapshot. It is only valid before
// the agent's runtime starts processing; the supervisor guarantees that.
func (l *Log) Restore(agentID string, msgs []core.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[agentID] = append([]core.Message{}, msgs...)
}

// Append atomically adds a message to an agent's history and returns the new
// history length. Unknown agent ids fail with core.ErrNotFound.
func (l *Log) Append(agentID string, msg core.Message) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs, ok := l.messages[agentID]
	if !ok {
		return 0, fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}
	l.messages[agentID] = append(msgs, msg)
	return len(msgs) + 1, nil
}

// Read returns a copy of the agent's full ordered history, or
// core.ErrNotFound for an unknown id.
func (l *Log) Read(agentID string) ([]core.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs, ok := l.messages[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Len returns the current history length for an agent, or core.ErrNotFound.
func (l *Log) Len(agentID string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs, ok := l.messages[agentID]
	if !ok {
		return 0, fmt.Errorf("agent %s: %w", agentID, core.ErrNotFound)
	}
	return len(msgs), nil
}
