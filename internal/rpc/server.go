// ABOUTME: WebSocket session handler: decode, validate, dispatch, encode, send.
// ABOUTME: One goroutine per connection; frames within a session never overlap.

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/2389/toolgate/internal/tools"
)

// DefaultMaxFrameSize bounds inbound frames when no limit is configured (1MB).
const DefaultMaxFrameSize = 1 << 20

// Registry is the tool lookup surface the session handler dispatches against.
type Registry interface {
	Get(id string) (tools.Tool, bool)
	List() []tools.Descriptor
}

// Config holds configuration for the session handler.
type Config struct {
	Registry     Registry
	Logger       *slog.Logger
	MaxFrameSize int64
}

// Handler accepts WebSocket connections and runs one session loop per
// connection. It owns the active-session set used for broadcast.
type Handler struct {
	registry     Registry
	logger       *slog.Logger
	maxFrameSize int64
	sessions     *sessionSet
}

// NewHandler creates a session handler with the given configuration.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFrame := cfg.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Handler{
		registry:     cfg.Registry,
		logger:       logger,
		maxFrameSize: maxFrame,
		sessions:     newSessionSet(),
	}, nil
}

// SessionCount returns the number of currently active sessions.
func (h *Handler) SessionCount() int {
	return h.sessions.len()
}

// ServeHTTP upgrades the connection and runs the session loop until the
// client disconnects or an unrecoverable transport error occurs.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// No origin policy: authentication and transport security are
		// out of scope for this server.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	// Oversize frames are a transport-level failure: exceeding the limit
	// closes the connection rather than producing a protocol error.
	conn.SetReadLimit(h.maxFrameSize)

	sess := newSession(conn, r.RemoteAddr)
	h.sessions.add(sess)
	defer h.sessions.remove(sess)

	h.logger.Info("client connected", "session_id", sess.ID, "remote", sess.Remote)
	h.serve(r.Context(), sess)
	h.logger.Info("client disconnected", "session_id", sess.ID, "remote", sess.Remote)
}

// serve processes frames in strict arrival order. Each frame is fully
// handled, including any tool invocation, before the next read; sessions
// remain independent because each runs in its own goroutine.
func (h *Handler) serve(ctx context.Context, sess *Session) {
	for {
		_, frame, err := sess.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				// clean close
			case ctx.Err() != nil:
				// server shutting down
			default:
				h.logger.Warn("session read failed", "session_id", sess.ID, "error", err)
			}
			return
		}

		resp := h.handleFrame(ctx, sess, frame)
		data, err := json.Marshal(resp)
		if err != nil {
			h.logger.Error("encoding response failed", "session_id", sess.ID, "error", err)
			continue
		}
		if err := sess.send(ctx, data); err != nil {
			h.logger.Warn("session write failed", "session_id", sess.ID, "error", err)
			return
		}
	}
}

// handleFrame runs one frame through decode, validate, and dispatch.
// Application-level failures never terminate the session; every path
// produces a response.
func (h *Handler) handleFrame(ctx context.Context, sess *Session, frame []byte) Response {
	req, errResp := DecodeRequest(frame)
	if errResp != nil {
		return *errResp
	}

	h.logger.Debug("dispatching request",
		"session_id", sess.ID,
		"method", req.Method,
	)

	switch req.Method {
	case "list_tools":
		return NewResult(req.ID, ListToolsResult{Tools: h.registry.List()})
	case "call_tool":
		return h.handleCallTool(ctx, sess, req)
	default:
		return NewError(req.ID, CodeMethodNotFound, "method not found", nil)
	}
}

// handleCallTool resolves the tool and invokes it. The invocation may block
// on I/O; only this session waits.
func (h *Handler) handleCallTool(ctx context.Context, sess *Session, req Request) Response {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewError(req.ID, CodeInvalidParams, "invalid params", nil)
		}
	}
	if params.Tool == "" {
		return NewError(req.ID, CodeInvalidParams, "missing tool id", nil)
	}

	tool, ok := h.registry.Get(params.Tool)
	if !ok {
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("tool %s not found", params.Tool), nil)
	}

	output, err := invoke(ctx, tool, params.Params)
	if err != nil {
		h.logger.Warn("tool execution failed",
			"session_id", sess.ID,
			"tool_id", params.Tool,
			"error", err,
		)
		return NewError(req.ID, CodeToolError, "tool execution error", err.Error())
	}

	return NewResult(req.ID, CallToolResult{OK: true, Result: output})
}

// invoke calls the tool, converting a panic into an invocation failure so a
// faulty tool reports -32000 instead of killing the session's goroutine.
func invoke(ctx context.Context, tool tools.Tool, params json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return tool.Call(ctx, params)
}

// Broadcast sends one encoded frame to every session in the active set.
// Per-recipient delivery failures are logged and otherwise dropped: they
// neither abort delivery to the remaining sessions nor reach the caller.
// A dead session is reaped by its own read loop.
func (h *Handler) Broadcast(ctx context.Context, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding broadcast failed", "error", err)
		return
	}

	for _, sess := range h.sessions.snapshot() {
		if err := sess.send(ctx, data); err != nil {
			h.logger.Warn("broadcast delivery failed", "session_id", sess.ID, "error", err)
		}
	}
}
