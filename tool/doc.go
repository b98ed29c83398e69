// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (shell commands, computations,
// side-effects) with schema validated arguments, consistent error handling and
// rich metadata for LLM guidance.
//
// Tools are registered in a Registry and dispatched by an Executor, which
// bounds every invocation with a timeout, recovers from panics and converts
// every outcome into a tool return recorded on the agent's history.
package tool
