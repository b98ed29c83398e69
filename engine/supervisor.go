package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/cortexstack/agency/agent"
	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/history"
	"github.com/cortexstack/agency/internal/util"
	"github.com/cortexstack/agency/logging"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/snapshot"
	"github.com/cortexstack/agency/tool"
)

// AgentSpec describes one agent in the initial roster of a fresh agency.
type AgentSpec struct {
	Name        string
	Instruction string
}

// Options configures a Supervisor instance using the functional options pattern.
type Options struct {
	// Agents is the roster used when starting a fresh agency. Defaults to a
	// single general-purpose assistant.
	Agents []AgentSpec

	// Registry holds the tools every agent runtime can call. New always adds
	// the agency coordination tools (create_agent, message_agent) to it.
	Registry *tool.Registry

	// Runtime tunes per-agent turn behavior (step limits, retries, timeouts).
	Runtime []func(o *agent.RuntimeOptions)

	// Callbacks receives lifecycle hooks. Defaults to an empty manager.
	Callbacks *CallbackManager

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Supervisor coordinates a single agency: a roster of agent runtimes sharing
// one model backend, one tool registry and one append-only history log.
//
// All public methods are safe for concurrent use. Operations on a stopped
// supervisor fail with core.ErrNotRunning; starting twice fails with
// core.ErrAlreadyRunning.
type Supervisor struct {
	backend   model.Backend
	snapshots snapshot.Store
	registry  *tool.Registry
	callbacks *CallbackManager
	logger    logging.Logger

	roster     []AgentSpec
	runtimeFns []func(o *agent.RuntimeOptions)

	mu     sync.RWMutex
	active *agency
}

// agency is the mutable state of one running agency instance. It is replaced
// wholesale on start and dropped on stop, never mutated across lifecycles.
type agency struct {
	log      *history.Log
	runtimes map[string]*agent.Runtime
	order    []string
	nextID   int

	// stopping guards against concurrent Stop calls while the singleton is
	// still set; it is cleared again when a Stop fails before the save.
	stopping bool
}

// New creates a Supervisor over the given model backend and snapshot store.
//
// The supervisor starts with no active agency; call Start before dispatching
// messages.
func New(backend model.Backend, snapshots snapshot.Store, optFns ...func(o *Options)) *Supervisor {
	opts := Options{
		Agents:    []AgentSpec{{Name: "Assistant", Instruction: "You are a helpful AI assistant."}},
		Registry:  tool.NewRegistry(),
		Callbacks: NewCallbackManager(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	// An explicitly empty roster falls back to the default assistant; a fresh
	// agency with zero agents would have nothing to dispatch to.
	if len(opts.Agents) == 0 {
		opts.Agents = []AgentSpec{{Name: "Assistant", Instruction: "You are a helpful AI assistant."}}
	}

	s := &Supervisor{
		backend:    backend,
		snapshots:  snapshots,
		registry:   opts.Registry,
		callbacks:  opts.Callbacks,
		logger:     opts.Logger,
		roster:     opts.Agents,
		runtimeFns: opts.Runtime,
	}

	for _, t := range agencyTools(s) {
		s.registry.Register(t)
	}

	return s
}

// Running reports whether an agency is currently active.
func (s *Supervisor) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// Start activates an agency. With an empty snapshotName the configured roster
// is created fresh with ids assigned in order. With a snapshot name the saved
// agents are restored, histories included, and id assignment continues past
// the highest restored id.
func (s *Supervisor) Start(ctx context.Context, snapshotName string) error {
	var restored *core.AgencyState
	if snapshotName != "" {
		state, err := s.snapshots.Load(ctx, snapshotName)
		if err != nil {
			return err
		}
		restored = &state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return core.ErrAlreadyRunning
	}

	ag := &agency{
		log:      history.NewLog(),
		runtimes: map[string]*agent.Runtime{},
	}

	if restored != nil {
		for _, as := range restored.Agents {
			ag.log.Restore(as.ID, as.MessageHistory)
			ag.runtimes[as.ID] = agent.New(as.ID, as.Name, as.Instruction, s.backend, s.registry, ag.log, s.runtimeFns...)
			ag.order = append(ag.order, as.ID)
			if n, err := strconv.Atoi(as.ID); err == nil && n >= ag.nextID {
				ag.nextID = n + 1
			}
		}
	} else {
		for _, spec := range s.roster {
			id := strconv.Itoa(ag.nextID)
			ag.nextID++
			instruction, err := renderInstruction(spec.Instruction, id, spec.Name)
			if err != nil {
				return fmt.Errorf("agent %s: %w", id, err)
			}
			ag.runtimes[id] = agent.New(id, spec.Name, instruction, s.backend, s.registry, ag.log, s.runtimeFns...)
			ag.order = append(ag.order, id)
		}
	}

	s.active = ag
	s.logger.Info("agency.started", "agents", len(ag.order), "snapshot", snapshotName)
	s.callbacks.Execute(ctx, CallbackOnStart, &CallbackContext{SnapshotName: snapshotName})
	return nil
}

// Stop freezes every runtime, persists a snapshot of the final state and then
// deactivates the agency. It returns the snapshot name.
//
// In-flight turns are cancelled; their runtimes record closing messages
// (paired tool returns, an interruption note) before the snapshot is taken,
// so the saved history is always well formed.
//
// The agency is dropped only after the snapshot is durably saved. If saving
// fails the (frozen) agency stays reachable: State still serves every agent's
// history and Stop can be retried against a recovered store.
func (s *Supervisor) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	ag := s.active
	if ag == nil || ag.stopping {
		s.mu.Unlock()
		return "", core.ErrNotRunning
	}
	ag.stopping = true
	s.mu.Unlock()

	for _, id := range ag.order {
		ag.runtimes[id].Freeze()
	}

	state, err := collectState(ag)
	if err != nil {
		s.abortStop(ag)
		return "", fmt.Errorf("collect agency state: %w", err)
	}

	name, err := s.snapshots.Save(ctx, state)
	if err != nil {
		s.abortStop(ag)
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	s.logger.Info("agency.stopped", "snapshot", name, "agents", len(ag.order))
	s.callbacks.Execute(ctx, CallbackOnStop, &CallbackContext{SnapshotName: name})
	return name, nil
}

// abortStop makes a failed Stop retryable. The runtimes stay frozen; only the
// stopping guard is released.
func (s *Supervisor) abortStop(ag *agency) {
	s.mu.Lock()
	ag.stopping = false
	s.mu.Unlock()
	s.logger.Error("agency.stop.failed", "agents", len(ag.order))
}

// State returns the live state of the running agency, every agent's full
// history included.
func (s *Supervisor) State(ctx context.Context) (core.AgencyState, error) {
	s.mu.RLock()
	ag := s.active
	s.mu.RUnlock()

	if ag == nil {
		return core.AgencyState{}, core.ErrNotRunning
	}
	return collectState(ag)
}

// AgentState returns one agent's state by id.
func (s *Supervisor) AgentState(ctx context.Context, id string) (core.AgentState, error) {
	rt, err := s.runtime(id)
	if err != nil {
		return core.AgentState{}, err
	}
	return rt.State()
}

// AgentStatus returns one agent's processing status by id.
func (s *Supervisor) AgentStatus(ctx context.Context, id string) (agent.Status, error) {
	rt, err := s.runtime(id)
	if err != nil {
		return agent.StatusIdle, err
	}
	return rt.Status(), nil
}

// Dispatch delivers a user message to the identified agent and blocks until
// the agent's turn completes, returning the final reply text.
//
// An agent already processing a message rejects the dispatch with
// core.ErrBusy; the rejected message leaves no trace in the history.
func (s *Supervisor) Dispatch(ctx context.Context, id, text string) (string, error) {
	rt, err := s.runtime(id)
	if err != nil {
		return "", err
	}

	s.callbacks.Execute(ctx, CallbackBeforeDispatch, &CallbackContext{AgentID: id})
	reply, err := rt.Handle(ctx, text)
	s.callbacks.Execute(ctx, CallbackAfterDispatch, &CallbackContext{AgentID: id, Err: err})
	return reply, err
}

// CreateAgent adds a new agent to the running agency and returns its state.
// The new agent gets the next sequential id and an empty history.
func (s *Supervisor) CreateAgent(ctx context.Context, name, instruction string) (core.AgentState, error) {
	s.mu.Lock()
	ag := s.active
	if ag == nil {
		s.mu.Unlock()
		return core.AgentState{}, core.ErrNotRunning
	}
	id := strconv.Itoa(ag.nextID)
	ag.nextID++
	rendered, err := renderInstruction(instruction, id, name)
	if err != nil {
		s.mu.Unlock()
		return core.AgentState{}, fmt.Errorf("agent %s: %w", id, err)
	}
	rt := agent.New(id, name, rendered, s.backend, s.registry, ag.log, s.runtimeFns...)
	ag.runtimes[id] = rt
	ag.order = append(ag.order, id)
	s.mu.Unlock()

	s.logger.Info("agency.agent.created", "agent_id", id, "agent", name)
	return rt.State()
}

// ListSnapshots returns all saved snapshot names, oldest first.
func (s *Supervisor) ListSnapshots(ctx context.Context) ([]string, error) {
	return s.snapshots.List(ctx)
}

// LoadSnapshot returns a saved snapshot's state without activating it.
func (s *Supervisor) LoadSnapshot(ctx context.Context, name string) (core.AgencyState, error) {
	return s.snapshots.Load(ctx, name)
}

// renderInstruction expands {{.id}} and {{.name}} in instruction text.
// Restored agents keep their stored instruction as is; rendering happens once
// at creation time.
func renderInstruction(instruction, id, name string) (string, error) {
	rendered, err := util.RenderTemplate(instruction, map[string]any{"id": id, "name": name})
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return rendered, nil
}

// runtime resolves an agent runtime by id under the read lock.
func (s *Supervisor) runtime(id string) (*agent.Runtime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, core.ErrNotRunning
	}
	rt, ok := s.active.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, core.ErrNotFound)
	}
	return rt, nil
}

// collectState assembles the full AgencyState in roster order.
func collectState(ag *agency) (core.AgencyState, error) {
	state := core.AgencyState{Agents: make([]core.AgentState, 0, len(ag.order))}
	for _, id := range ag.order {
		as, err := ag.runtimes[id].State()
		if err != nil {
			return core.AgencyState{}, err
		}
		state.Agents = append(state.Agents, as)
	}
	return state, nil
}
