package snapshot

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cortexstack/agency/core"
)

// SQLiteStore keeps snapshots as gzip-compressed JSON blobs in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the
// snapshot table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			state_gz BLOB NOT NULL,
			byte_size INTEGER NOT NULL,
			agent_count INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_created
			ON snapshots(created_at DESC);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save compresses and inserts the state under a fresh name.
func (s *SQLiteStore) Save(ctx context.Context, state core.AgencyState) (string, error) {
	name, err := newName()
	if err != nil {
		return "", err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(stateJSON); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip: %w", err)
	}

	compressed := buf.Bytes()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, created_at, state_gz, byte_size, agent_count)
		VALUES (?, ?, ?, ?, ?)
	`, name, now.Format(time.RFC3339), compressed, len(compressed), len(state.Agents))
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return name, nil
}

// List returns snapshot names oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Load fetches, decompresses and decodes one snapshot.
func (s *SQLiteStore) Load(ctx context.Context, name string) (core.AgencyState, error) {
	var stateGz []byte
	err := s.db.QueryRowContext(ctx, `SELECT state_gz FROM snapshots WHERE name = ?`, name).Scan(&stateGz)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.AgencyState{}, fmt.Errorf("load snapshot %s: %w", name, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(stateGz))
	if err != nil {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w: %v", name, core.ErrCorrupt, err)
	}
	defer gr.Close()

	stateJSON, err := io.ReadAll(gr)
	if err != nil {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w: %v", name, core.ErrCorrupt, err)
	}

	var state core.AgencyState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return core.AgencyState{}, fmt.Errorf("snapshot %s: %w: %v", name, core.ErrCorrupt, err)
	}
	return state, nil
}
