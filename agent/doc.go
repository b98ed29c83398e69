// Package agent implements the per-agent runtime: a serialized message
// processor that owns one agent's conversation with a model backend.
//
// Each Runtime accepts at most one user message at a time. While a message is
// being processed the runtime reports a processing status and rejects further
// messages instead of queueing them, so an agent's history always reflects
// complete, ordered turns. A turn alternates model generations with tool
// executions until the model answers with plain text, a step limit is
// reached, or the turn is interrupted.
//
// Runtimes are frozen when their agency stops. A frozen runtime rejects all
// messages permanently; a stopped agency resumes through a fresh set of
// runtimes restored from a snapshot.
package agent
