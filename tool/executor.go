package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cortexstack/agency/core"
	"github.com/cortexstack/agency/logging"
)

// Executor dispatches tool calls against a Registry and converts every
// outcome, including lookup failures, panics, timeouts and cancellation, into
// a tool return part. Callers therefore always receive exactly one return per
// call, which keeps the call/return pairing on agent histories intact.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   logging.Logger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Timeout bounds a single tool invocation. Zero disables the bound.
	Timeout time.Duration
	// Logger receives per-invocation structured records.
	Logger logging.Logger
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Timeout: 60 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{registry: registry, timeout: opts.Timeout, logger: opts.Logger}
}

// Execute runs a single tool call and returns its paired tool return. The
// return carries the call's tool_call_id unchanged. Errors never escape as Go
// errors; they surface as returns with IsError set so the model sees them on
// the next turn.
func (e *Executor) Execute(ctx context.Context, call core.ToolCallPart) core.ToolReturnPart {
	start := time.Now()
	e.logger.Debug("tool.call.start", "tool", call.ToolName, "tool_call_id", call.ToolCallID)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		var (
			result any
			err    error
		)
		func() { // panic safety
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("tool %s panicked: %v", call.ToolName, r)
					e.logger.Error("tool.call.panic", "tool", call.ToolName, "recover", r, "stack", string(debug.Stack()))
				}
			}()
			result, err = e.dispatch(ctx, call)
		}()
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = outcome{err: fmt.Errorf("tool %s aborted: %w", call.ToolName, ctx.Err())}
	}

	e.logger.Info(
		"tool.call.executed",
		"tool", call.ToolName,
		"tool_call_id", call.ToolCallID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", out.err != nil,
	)

	if out.err != nil {
		return core.ToolReturnPart{
			ToolName:   call.ToolName,
			ToolCallID: call.ToolCallID,
			Content:    out.err.Error(),
			IsError:    true,
		}
	}

	return core.ToolReturnPart{
		ToolName:   call.ToolName,
		ToolCallID: call.ToolCallID,
		Content:    stringify(out.result),
	}
}

// dispatch centralizes tool lookup, argument decoding and invocation.
func (e *Executor) dispatch(ctx context.Context, call core.ToolCallPart) (any, error) {
	impl, ok := e.registry.Lookup(call.ToolName)
	if !ok {
		return nil, fmt.Errorf("tool %s not found", call.ToolName)
	}

	var argMap map[string]any
	if len(call.Args) == 0 {
		argMap = map[string]any{}
	} else if err := json.Unmarshal(call.Args, &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return impl.Call(ctx, argMap)
}

// stringify renders a tool result as the textual content recorded on the
// history and surfaced to the model.
func stringify(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
