package engine

import (
	"context"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks provide a mechanism for hooking into the supervisor's lifecycle
// without modifying core logic. They are executed synchronously, after the
// operation they observe, and cannot veto it.
type CallbackType string

const (
	// CallbackOnStart is triggered after an agency starts.
	CallbackOnStart CallbackType = "on_start"

	// CallbackOnStop is triggered after an agency stops and its snapshot is
	// saved.
	CallbackOnStop CallbackType = "on_stop"

	// CallbackBeforeDispatch is triggered before a message is handed to an
	// agent runtime.
	CallbackBeforeDispatch CallbackType = "before_dispatch"

	// CallbackAfterDispatch is triggered after an agent's turn finished,
	// whether it succeeded or not.
	CallbackAfterDispatch CallbackType = "after_dispatch"
)

// CallbackContext carries the facts of the lifecycle event being observed.
type CallbackContext struct {
	// AgentID identifies the agent for dispatch callbacks. Empty for
	// agency-level events.
	AgentID string

	// SnapshotName is the snapshot restored on start or written on stop.
	SnapshotName string

	// Err is the dispatch outcome for CallbackAfterDispatch, nil on success.
	Err error
}

// Callback defines the interface for lifecycle hooks. Implementations should
// be fast, as they run synchronously on the dispatching goroutine, and must
// not panic.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext)
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	auditCallback := NewFunctionCallback(
//	    CallbackAfterDispatch,
//	    func(ctx context.Context, cc *CallbackContext) {
//	        metrics.Count("dispatch", cc.AgentID, cc.Err == nil)
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext)
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext),
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) {
	c.fn(ctx, callbackCtx)
}

// CallbackManager routes callbacks to the hooks registered for their type.
//
// Register all callbacks before handing the manager to a Supervisor; the
// manager is not synchronized for concurrent registration, but execution is
// safe from any goroutine once registration is complete.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// Register adds a callback for its declared type. Multiple callbacks per type
// run in registration order.
func (cm *CallbackManager) Register(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Execute runs all callbacks registered for the given type.
func (cm *CallbackManager) Execute(ctx context.Context, callbackType CallbackType, callbackCtx *CallbackContext) {
	for _, callback := range cm.callbacks[callbackType] {
		callback.Execute(ctx, callbackCtx)
	}
}
