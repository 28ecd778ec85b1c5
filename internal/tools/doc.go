// Package tools defines the capability contract every server-resident tool
// implements and the registry that maps tool ids to instances.
//
// # Contract
//
// A tool exposes an immutable Descriptor (id, title, description, optional
// JSON schemas) and a single Call operation:
//
//	Call(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
//
// The error return signals that the invocation failed and is reported to
// clients as a tool execution error. Failures that are part of a tool's
// domain (a missing file, a malformed expression) are returned as a success
// with an ok:false result document, leaving the session untouched.
//
// # Registry
//
// The registry rejects duplicate ids and lists descriptors in registration
// order so discovery output is reproducible. It holds tool references, not
// copies; tools must be safe for concurrent Call from many sessions.
package tools
