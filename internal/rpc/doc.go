// Package rpc implements the protocol engine: JSON-RPC 2.0 envelope handling
// over a persistent WebSocket connection, per-session dispatch, and broadcast.
//
// # Protocol
//
// Each text frame carries exactly one envelope; there is no batching. Two
// methods are built in:
//
//   - list_tools: returns {"tools": [descriptor, ...]} in registration order
//   - call_tool:  params {"tool": id, "params": {...}} invokes the named tool
//
// Any other method is answered with -32601. The error table is closed:
//
//	-32700  payload not decodable (id is null)
//	-32600  structurally invalid request envelope
//	-32601  unknown method, or unknown tool id
//	-32602  missing/invalid parameters
//	-32000  tool invocation failed (description carried in data)
//
// # Sessions
//
// Each accepted connection gets a session goroutine that reads frames in
// strict arrival order; a frame is fully handled before the next read, so
// frames within one session never overlap while sessions stay independent.
// Malformed or erroneous application frames never terminate a session; only
// transport closure or a fatal read error (including an oversize frame) does.
//
// # Known limitation
//
// No timeout or cancellation exists for a stuck tool call. The invocation
// context is cancelled only when the connection drops; a tool that never
// returns holds its session forever. Clients that need a bound must enforce
// it themselves.
package rpc
