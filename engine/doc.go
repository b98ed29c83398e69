// Package engine implements the agency supervisor, the orchestration layer
// that owns the lifecycle of a running agency.
//
// # Core Responsibilities
//
// Lifecycle Management:
//   - Start builds a fresh agency roster or resumes one from a snapshot
//   - Stop freezes every agent runtime and persists a snapshot of the
//     complete agency state before releasing it
//   - Exactly one agency is active per Supervisor at any time
//
// Message Routing:
//   - Dispatch delivers a user message to one agent's runtime and returns
//     the agent's final reply once its turn completes
//   - Agents process strictly one message at a time; concurrent sends are
//     rejected instead of queued
//
// Roster Management:
//   - Agents receive sequential string ids ("0", "1", ...) in creation order
//   - CreateAgent extends the roster of a running agency
//   - The create_agent and message_agent tools expose the same operations to
//     the agents themselves, so an agent can spawn and converse with another
//     agent mid-turn
//
// # Concurrency Model
//
// The Supervisor guards only its roster pointer with a mutex. Long-running
// work (model calls, tool executions) happens inside the per-agent runtimes,
// so state inspection and snapshot listing never block behind an agent's
// in-flight turn.
//
// A Supervisor is an ordinary injected dependency. Create one per process
// (or per test) and hand it to the HTTP server; nothing in this package is a
// process-wide singleton.
package engine
