package core

import "errors"

var (
	// ErrNotFound is returned when an agent id or snapshot name does not
	// exist in the addressed store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRunning is returned by Start when an agency is active.
	ErrAlreadyRunning = errors.New("agency already running")

	// ErrNotRunning is returned by lifecycle and dispatch operations when no
	// agency is active.
	ErrNotRunning = errors.New("no agency running")

	// ErrBusy is returned when an agent already has a turn in flight.
	// Callers must retry; the rejected call leaves history unchanged.
	ErrBusy = errors.New("agent busy")

	// ErrCorrupt is returned when a persisted snapshot cannot be parsed.
	ErrCorrupt = errors.New("snapshot corrupt")
)
