// Package core provides the foundational domain types shared by every layer
// of the agency engine. It defines:
//
//   - Part (the closed sum type for message content segments)
//   - Message (an immutable, ordered record of one conversational exchange)
//   - AgentState / AgencyState (the serialized shapes used by the HTTP
//     surface and the snapshot store)
//   - The error taxonomy for lifecycle, addressing and persistence failures
//
// The package intentionally keeps implementation concerns (persistence,
// supervision, concrete backends) out of scope, exposing small value types
// so higher layers can depend on them without import cycles.
package core
