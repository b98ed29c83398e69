package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cortexstack/agency/core"
)

// FileStore keeps one JSON file per snapshot in a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// Save writes the state to a new file, using a temp file plus rename so a
// crash never leaves a half-written snapshot behind.
func (s *FileStore) Save(ctx context.Context, state core.AgencyState) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := newName()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}
	return name, nil
}

// List returns the snapshot file names sorted ascending.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and decodes one snapshot. Names containing path separators are
// rejected as not found so callers cannot escape the snapshot directory.
func (s *FileStore) Load(ctx context.Context, name string) (core.AgencyState, error) {
	if err := ctx.Err(); err != nil {
		return core.AgencyState{}, err
	}
	if name == "" || filepath.Base(name) != name {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w", name, core.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return core.AgencyState{}, fmt.Errorf("snapshot %s: %w", name, core.ErrNotFound)
		}
		return core.AgencyState{}, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	var state core.AgencyState
	if err := json.Unmarshal(data, &state); err != nil {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w: %v", name, core.ErrCorrupt, err)
	}
	return state, nil
}
