// ABOUTME: JSON-RPC 2.0 envelope types and the closed error-code table.
// ABOUTME: One text frame carries one envelope; there is no batching.

package rpc

import (
	"encoding/json"
	"errors"

	"github.com/2389/toolgate/internal/tools"
)

// Standard JSON-RPC error codes, plus the server-defined tool error.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeToolError      = -32000
)

// Request is an inbound JSON-RPC 2.0 request envelope. ID is an opaque
// correlation token (string, number, or null) kept as raw JSON.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound JSON-RPC 2.0 response envelope. Exactly one of
// Result or Error is present. A nil ID marshals as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CallToolParams are the params for the call_tool method.
type CallToolParams struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ListToolsResult is the result for the list_tools method.
type ListToolsResult struct {
	Tools []tools.Descriptor `json:"tools"`
}

// CallToolResult is the result for a successful call_tool invocation.
// Result carries the tool's own output document verbatim.
type CallToolResult struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// NewResult builds a success response echoing the given correlation id.
func NewResult(id json.RawMessage, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Result:  result,
	}
}

// NewError builds an error response. Pass a nil id when the request id could
// not be recovered; it is encoded as null.
func NewError(id json.RawMessage, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// DecodeRequest parses and shape-validates one frame.
//
// A frame that is not JSON at all yields CodeParseError with a null id. A
// frame that is JSON but not a valid request envelope (wrong version tag,
// missing method, non-object shape) yields CodeInvalidRequest, echoing the
// id when it can be recovered from the payload.
func DecodeRequest(data []byte) (Request, *Response) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Valid JSON, wrong shape. Try to salvage the id for the echo.
			resp := NewError(recoverID(data), CodeInvalidRequest, "invalid request", nil)
			return Request{}, &resp
		}
		resp := NewError(nil, CodeParseError, "parse error", nil)
		return Request{}, &resp
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		resp := NewError(req.ID, CodeInvalidRequest, "invalid request", nil)
		return Request{}, &resp
	}
	return req, nil
}

// recoverID pulls the correlation id out of a structurally invalid payload.
// Returns nil (encoded as null) when the id cannot be recovered.
func recoverID(data []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return normalizeID(probe.ID)
}

// normalizeID maps an absent id to nil so it encodes as null.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nil
	}
	return id
}
