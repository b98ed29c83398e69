// Package history implements the append-only per-agent message log. The log
// is the single durable record of everything an agent exchanged: user input,
// assistant output, tool calls and tool returns. It supports exactly two
// mutations, registering an agent and appending a message; nothing is ever
// rewritten or deleted.
package history
