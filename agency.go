// Package agency provides a high-level façade over the engine Supervisor and
// its supporting services (model backends, tools, snapshots & logging) for
// embedding an agency of conversational agents in a Go program. Most
// applications interact with this package by:
//  1. Creating an Agency via New() (optionally overriding the default mock
//     backend and in-memory snapshot store)
//  2. Starting it fresh or from a snapshot (Start)
//  3. Sending messages to agents (SendMessage) and stopping when done (Stop)
//
// The façade delegates orchestration to engine.Supervisor while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a real model backend,
// a durable snapshot store and a structured logger.
package agency

import (
	"context"

	"github.com/cortexstack/agency/agent"
	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/engine"
	"github.com/cortexstack/agency/logging"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/snapshot"
	"github.com/cortexstack/agency/tool"
)

// Options configures the Agency instance.
type Options struct {
	// Backend is the model backend shared by every agent.
	// Defaults to a mock backend that echoes user messages.
	Backend model.Backend

	// Snapshots persists agency state across stop/start cycles.
	// Defaults to an in-memory store.
	Snapshots snapshot.Store

	// Agents is the roster created when starting fresh. Defaults to a
	// single general-purpose assistant.
	Agents []engine.AgentSpec

	// Registry holds the tools available to every agent.
	Registry *tool.Registry

	// Runtime tunes per-agent turn behavior (step limits, retries, timeouts).
	Runtime []func(o *agent.RuntimeOptions)

	// Callbacks receives lifecycle hooks.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentSpec is re-exported for roster construction.
type AgentSpec = engine.AgentSpec

// Agency is the high-level façade aggregating the supervisor and its services.
type Agency struct {
	supervisor *engine.Supervisor
}

// New creates a new Agency with optional overrides. Any unset service is
// initialized with a local default.
func New(optFns ...func(o *Options)) *Agency {
	opts := Options{
		Backend:   model.NewMockBackend("mock-model"),
		Snapshots: snapshot.NewMemoryStore(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	supervisor := engine.New(opts.Backend, opts.Snapshots, func(o *engine.Options) {
		if len(opts.Agents) > 0 {
			o.Agents = opts.Agents
		}
		if opts.Registry != nil {
			o.Registry = opts.Registry
		}
		if opts.Callbacks != nil {
			o.Callbacks = opts.Callbacks
		}
		o.Runtime = opts.Runtime
		o.Logger = opts.Logger
	})

	return &Agency{supervisor: supervisor}
}

// Supervisor exposes the underlying supervisor for advanced use, such as
// serving it over HTTP with the server package.
func (a *Agency) Supervisor() *engine.Supervisor { return a.supervisor }

// Running reports whether the agency is active.
func (a *Agency) Running() bool { return a.supervisor.Running() }

// Start activates the agency, fresh or from a named snapshot.
func (a *Agency) Start(ctx context.Context, snapshotName string) error {
	return a.supervisor.Start(ctx, snapshotName)
}

// Stop freezes every agent, persists a snapshot and returns its name.
func (a *Agency) Stop(ctx context.Context) (string, error) {
	return a.supervisor.Stop(ctx)
}

// SendMessage delivers a user message to an agent and returns its reply.
// The call blocks for the whole turn, tool rounds included.
func (a *Agency) SendMessage(ctx context.Context, agentID, text string) (string, error) {
	return a.supervisor.Dispatch(ctx, agentID, text)
}

// State returns the full state of the running agency.
func (a *Agency) State(ctx context.Context) (core.AgencyState, error) {
	return a.supervisor.State(ctx)
}

// AgentState returns one agent's state, message history included.
func (a *Agency) AgentState(ctx context.Context, agentID string) (core.AgentState, error) {
	return a.supervisor.AgentState(ctx, agentID)
}

// CreateAgent adds an agent to the running agency and returns its state.
func (a *Agency) CreateAgent(ctx context.Context, name, instruction string) (core.AgentState, error) {
	return a.supervisor.CreateAgent(ctx, name, instruction)
}

// ListSnapshots returns saved snapshot names, oldest first.
func (a *Agency) ListSnapshots(ctx context.Context) ([]string, error) {
	return a.supervisor.ListSnapshots(ctx)
}
