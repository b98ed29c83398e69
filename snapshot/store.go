package snapshot

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cortexstack/agency/core"
)

// Store persists and retrieves agency snapshots.
//
// Save assigns the snapshot name and returns it; names are UUIDv7 based so
// sorting names lexicographically yields creation order. Load fails with
// core.ErrNotFound for unknown names and core.ErrCorrupt when stored data can
// no longer be decoded.
type Store interface {
	// Save persists the state under a freshly generated name and returns it.
	Save(ctx context.Context, state core.AgencyState) (string, error)

	// List returns all snapshot names in ascending (oldest first) order.
	List(ctx context.Context) ([]string, error)

	// Load retrieves a snapshot by name.
	Load(ctx context.Context, name string) (core.AgencyState, error)
}

// newName generates a time-ordered snapshot name.
func newName() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate snapshot name: %w", err)
	}
	return id.String() + ".json", nil
}
