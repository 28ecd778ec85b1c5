// ABOUTME: Capability contract for server-resident tools.
// ABOUTME: A tool is an immutable descriptor plus one invocation operation.

package tools

import (
	"context"
	"encoding/json"
)

// Descriptor is the static identity and schema metadata for a tool.
// Created at tool construction and never mutated afterwards.
type Descriptor struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
}

// Tool is a named server-side capability. Call maps a parameter document to
// a result document. A returned error means the invocation itself failed;
// domain-level failures belong inside the result document (ok:false).
//
// The engine treats tools as stateless. A tool that keeps internal state owns
// its own synchronization. Blocking I/O inside Call only stalls the calling
// session's goroutine, never another session's dispatch loop.
type Tool interface {
	Descriptor() Descriptor
	Call(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}
