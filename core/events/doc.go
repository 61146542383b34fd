// Package events defines the typed session event contract consumed by the
// bridge orchestrator.
//
// Event kinds are grouped by namespaces mirroring the transport protocol:
//
//   - session.*: connection lifecycle (ready, protocol error)
//   - turn.*: assistant generation turn lifecycle
//   - speech.*: user voice activity
//   - transcript.*: completed utterance transcripts
//   - tool_call.*: delegated tool invocation (function-calling mode)
//   - audio.*: outbound assistant audio frames
//
// Semantics used across the package:
//
//   - Started/Finalized/Stopped: lifecycle boundaries delivered in transport
//     order on a single event stream.
//   - Completed: terminal immutable payload for the current stream phase.
//
// The orchestrator handles events strictly in arrival order; nothing that
// receives an event may block the delivering goroutine.
package events
