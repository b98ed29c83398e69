package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cortexstack/agency/core"
)

// MemoryStore keeps snapshots in process memory. Snapshots do not survive a
// restart; intended for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	order []string
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Save implements Store. The state is serialized so later mutations of the
// caller's value cannot leak into the stored snapshot.
func (s *MemoryStore) Save(ctx context.Context, state core.AgencyState) (string, error) {
	name, err := newName()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = data
	s.order = append(s.order, name)
	return name, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names, nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, name string) (core.AgencyState, error) {
	s.mu.RLock()
	data, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w", name, core.ErrNotFound)
	}

	var state core.AgencyState
	if err := json.Unmarshal(data, &state); err != nil {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w: %v", name, core.ErrCorrupt, err)
	}
	return state, nil
}
