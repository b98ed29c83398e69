package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/history"
	"github.com/cortexstack/agency/logging"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/tool"
)

// Status describes what a runtime is currently doing.
type Status int

const (
	// StatusIdle means the runtime is ready for a new message.
	StatusIdle Status = iota
	// StatusProcessing means a turn is in flight and new messages are rejected.
	StatusProcessing
	// StatusFrozen means the runtime's agency stopped and no further messages
	// will ever be accepted.
	StatusFrozen
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusProcessing:
		return "processing"
	case StatusFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Canned reply texts recorded when a turn cannot finish normally. They are
// regular assistant messages so history stays self-describing.
const (
	maxStepsReply    = "I stopped because the maximum number of processing steps was reached before I could produce a final answer."
	failedReply      = "I was unable to produce a response because the language model backend kept failing."
	interruptedReply = "Processing was interrupted before I could produce a final answer."
)

// RuntimeOptions configures a Runtime instance.
//
// Use functional options with New to override defaults.
type RuntimeOptions struct {
	// MaxSteps caps the number of model generations in a single turn.
	MaxSteps int
	// MaxAttempts caps retries of a single failing model generation.
	MaxAttempts int
	// BaseDelay is the initial retry backoff; it doubles per attempt.
	BaseDelay time.Duration
	// ToolTimeout bounds a single tool invocation.
	ToolTimeout time.Duration
	// Logger receives structured per-turn records.
	Logger logging.Logger
}

// Runtime drives a single agent's conversation loop.
//
// A Runtime serializes message handling: Handle rejects concurrent calls
// instead of queueing, so the history log only ever records complete turns in
// order. All model and tool traffic for the agent flows through this type.
type Runtime struct {
	id          string
	name        string
	instruction string

	backend  model.Backend
	registry *tool.Registry
	executor *tool.Executor
	history  *history.Log
	logger   logging.Logger

	maxSteps    int
	maxAttempts int
	baseDelay   time.Duration

	mu         sync.Mutex
	status     Status
	cancelTurn context.CancelFunc
	turnDone   chan struct{}
}

// New creates a runtime for one agent and registers its history.
//
// Defaults: 10 steps per turn, 3 generation attempts with 500ms initial
// backoff, 60s tool timeout, no-op logging.
func New(
	id, name, instruction string,
	backend model.Backend,
	registry *tool.Registry,
	log *history.Log,
	optFns ...func(o *RuntimeOptions),
) *Runtime {
	opts := RuntimeOptions{
		MaxSteps:    10,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		ToolTimeout: 60 * time.Second,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	log.Register(id)

	return &Runtime{
		id:          id,
		name:        name,
		instruction: instruction,
		backend:     backend,
		registry:    registry,
		executor: tool.NewExecutor(registry, func(o *tool.ExecutorOptions) {
			o.Timeout = opts.ToolTimeout
			o.Logger = opts.Logger
		}),
		history:     log,
		logger:      opts.Logger,
		maxSteps:    opts.MaxSteps,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
	}
}

// ID returns the agent's identifier.
func (r *Runtime) ID() string { return r.id }

// Name returns the agent's display name.
func (r *Runtime) Name() string { return r.name }

// Status returns the runtime's current status.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// State returns a point-in-time view of the agent including its full history.
func (r *Runtime) State() (core.AgentState, error) {
	msgs, err := r.history.Read(r.id)
	if err != nil {
		return core.AgentState{}, err
	}
	return core.AgentState{
		ID:             r.id,
		Name:           r.name,
		Instruction:    r.instruction,
		MessageHistory: msgs,
	}, nil
}

// Handle processes one user message to completion and returns the agent's
// final text reply.
//
// Exactly one turn runs at a time: a second Handle while one is in flight
// fails with core.ErrBusy and leaves the history untouched. A frozen runtime
// fails with core.ErrNotRunning. The ctx bounds the whole turn; Freeze
// cancels it early.
func (r *Runtime) Handle(ctx context.Context, text string) (string, error) {
	r.mu.Lock()
	switch r.status {
	case StatusFrozen:
		r.mu.Unlock()
		return "", fmt.Errorf("agent %s: %w", r.id, core.ErrNotRunning)
	case StatusProcessing:
		r.mu.Unlock()
		return "", fmt.Errorf("agent %s: %w", r.id, core.ErrBusy)
	}
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.status = StatusProcessing
	r.cancelTurn = cancel
	r.turnDone = done
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		if r.status == StatusProcessing {
			r.status = StatusIdle
		}
		r.cancelTurn = nil
		r.turnDone = nil
		r.mu.Unlock()
		close(done)
	}()

	r.logger.Info("agent.turn.start", "agent_id", r.id, "agent", r.name)

	if _, err := r.history.Append(r.id, core.NewUserMessage(text)); err != nil {
		return "", err
	}

	reply, err := r.runTurn(turnCtx)
	r.logger.Info("agent.turn.complete", "agent_id", r.id, "error", err != nil)
	return reply, err
}

// Freeze permanently stops the runtime. An in-flight turn is cancelled and
// Freeze blocks until it has finished recording its closing messages, so a
// snapshot taken afterwards never contains a dangling tool call.
func (r *Runtime) Freeze() {
	r.mu.Lock()
	if r.status == StatusFrozen {
		r.mu.Unlock()
		return
	}
	cancel := r.cancelTurn
	done := r.turnDone
	r.status = StatusFrozen
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	r.logger.Info("agent.frozen", "agent_id", r.id)
}

// runTurn alternates model generations and tool executions until the model
// answers in plain text or a limit intervenes. Every tool call is recorded as
// an assistant message immediately followed by its tool return, even when the
// execution fails or is cancelled mid-flight.
func (r *Runtime) runTurn(ctx context.Context) (string, error) {
	for step := 0; step < r.maxSteps; step++ {
		resp, err := r.generate(ctx)
		if err != nil {
			reply := failedReply
			if ctx.Err() != nil {
				reply = interruptedReply
			}
			if _, aerr := r.history.Append(r.id, core.NewAssistantText(reply)); aerr != nil {
				return "", aerr
			}
			return "", err
		}

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			reply := resp.Text()
			if _, err := r.history.Append(r.id, core.NewAssistantText(reply)); err != nil {
				return "", err
			}
			return reply, nil
		}

		for _, call := range calls {
			if _, err := r.history.Append(r.id, core.NewToolCallMessage(call)); err != nil {
				return "", err
			}
			ret := r.executor.Execute(ctx, call)
			if _, err := r.history.Append(r.id, core.NewToolReturnMessage(ret)); err != nil {
				return "", err
			}
		}

		if ctx.Err() != nil {
			if _, err := r.history.Append(r.id, core.NewAssistantText(interruptedReply)); err != nil {
				return "", err
			}
			return "", ctx.Err()
		}
	}

	r.logger.Warn("agent.turn.step_limit", "agent_id", r.id, "max_steps", r.maxSteps)
	if _, err := r.history.Append(r.id, core.NewAssistantText(maxStepsReply)); err != nil {
		return "", err
	}
	return maxStepsReply, nil
}

// generate calls the backend with the agent's instruction, full history and
// tool declarations, retrying transient failures with doubling backoff.
func (r *Runtime) generate(ctx context.Context) (model.Response, error) {
	msgs, err := r.history.Read(r.id)
	if err != nil {
		return model.Response{}, err
	}
	req := model.Request{
		Instructions: r.instruction,
		History:      msgs,
		Tools:        r.registry.Definitions(),
	}

	delay := r.baseDelay
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err := r.backend.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return model.Response{}, ctx.Err()
		}
		r.logger.Warn(
			"agent.generate.retry",
			"agent_id", r.id,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"error", err.Error(),
		)
		if attempt < r.maxAttempts {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return model.Response{}, ctx.Err()
			}
			delay *= 2
		}
	}
	return model.Response{}, fmt.Errorf("model generation failed after %d attempts: %w", r.maxAttempts, lastErr)
}
