// Package model defines the boundary to the external reasoning service. A
// Backend turns an agent's instruction, history and tool catalog into either
// a final text reply or one-or-more tool-call requests. Concrete adapters
// live in the anthropic and openai subpackages; MockBackend provides
// deterministic behavior for tests.
package model
