// ABOUTME: End-to-end session tests over real WebSocket connections.
// ABOUTME: Covers dispatch, the error table, session survival, and broadcast.

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/tools"
)

// stubTool implements tools.Tool with a pluggable invocation.
type stubTool struct {
	id string
	fn func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
}

func (s *stubTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{ID: s.id, Title: "Stub " + s.id, Description: "stub tool"}
}

func (s *stubTool) Call(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return s.fn(ctx, params)
}

// wireResponse mirrors Response with raw members for assertions.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

func echoTool() *stubTool {
	return &stubTool{
		id: "echo",
		fn: func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
			return params, nil
		},
	}
}

func failingTool() *stubTool {
	return &stubTool{
		id: "broken",
		fn: func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("internal tool fault")
		},
	}
}

// newTestHandler builds a handler over the given tools and serves it.
func newTestHandler(t *testing.T, toolList ...tools.Tool) *Handler {
	t.Helper()

	registry := tools.NewRegistry(slog.Default())
	for _, tool := range toolList {
		require.NoError(t, registry.Register(tool))
	}

	h, err := NewHandler(Config{Registry: registry, Logger: slog.Default()})
	require.NoError(t, err)
	return h
}

// dial connects a websocket client to the handler under test.
func dial(t *testing.T, ctx context.Context, h *Handler) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// roundTrip sends one frame and returns the decoded response.
func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, frame string) wireResponse {
	t.Helper()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var resp wireResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionListTools(t *testing.T) {
	ctx := testContext(t)
	conn := dial(t, ctx, newTestHandler(t, echoTool(), failingTool()))

	resp := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, "1", string(resp.ID))

	var result ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 2)
	assert.Equal(t, "echo", result.Tools[0].ID)
	assert.Equal(t, "broken", result.Tools[1].ID)

	// Idempotent: a second listing returns the same descriptor set.
	resp2 := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":2,"method":"list_tools"}`)
	require.Nil(t, resp2.Error)
	assert.JSONEq(t, string(resp.Result), string(resp2.Result))
}

func TestSessionCallTool(t *testing.T) {
	ctx := testContext(t)
	conn := dial(t, ctx, newTestHandler(t, echoTool(), failingTool()))

	t.Run("success wraps tool output", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn,
			`{"jsonrpc":"2.0","id":10,"method":"call_tool","params":{"tool":"echo","params":{"x":1}}}`)
		require.Nil(t, resp.Error)

		var result struct {
			OK     bool            `json:"ok"`
			Result json.RawMessage `json:"result"`
		}
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.True(t, result.OK)
		assert.JSONEq(t, `{"x":1}`, string(result.Result))
	})

	t.Run("unknown tool id names the tool", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn,
			`{"jsonrpc":"2.0","id":11,"method":"call_tool","params":{"tool":"nope","params":{}}}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "nope")
	})

	t.Run("missing tool key is invalid params", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn,
			`{"jsonrpc":"2.0","id":12,"method":"call_tool","params":{"params":{}}}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("absent params document is invalid params", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn,
			`{"jsonrpc":"2.0","id":13,"method":"call_tool"}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("tool failure keeps the session alive", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn,
			`{"jsonrpc":"2.0","id":14,"method":"call_tool","params":{"tool":"broken","params":{}}}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeToolError, resp.Error.Code)
		assert.Equal(t, "internal tool fault", resp.Error.Data)

		// Same session's next valid request still succeeds.
		next := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":15,"method":"list_tools"}`)
		require.Nil(t, next.Error)
		assert.Equal(t, "15", string(next.ID))
	})
}

func TestSessionProtocolErrors(t *testing.T) {
	ctx := testContext(t)
	conn := dial(t, ctx, newTestHandler(t, echoTool()))

	t.Run("undecodable payload", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn, `{parse me if you can`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeParseError, resp.Error.Code)
		assert.Equal(t, "null", string(resp.ID))
	})

	t.Run("invalid envelope shape", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn, `{"id":3,"method":"list_tools"}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
		assert.Equal(t, "3", string(resp.ID))
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":4,"method":"do_magic"}`)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	})

	t.Run("session survives the whole error sequence", func(t *testing.T) {
		resp := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":5,"method":"list_tools"}`)
		require.Nil(t, resp.Error)
	})
}

func TestSessionPanickingTool(t *testing.T) {
	ctx := testContext(t)
	panicky := &stubTool{
		id: "panicky",
		fn: func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
			panic("tool went sideways")
		},
	}
	conn := dial(t, ctx, newTestHandler(t, panicky))

	resp := roundTrip(t, ctx, conn,
		`{"jsonrpc":"2.0","id":1,"method":"call_tool","params":{"tool":"panicky","params":{}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeToolError, resp.Error.Code)

	// Session is still usable afterwards.
	next := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":2,"method":"list_tools"}`)
	require.Nil(t, next.Error)
}

func TestBroadcast(t *testing.T) {
	ctx := testContext(t)
	h := newTestHandler(t, echoTool())

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	// Connect three clients and prove each session is active with one
	// round trip before broadcasting.
	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conn, _, err := websocket.Dial(ctx, url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.CloseNow() })
		conns[i] = conn

		resp := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
		require.Nil(t, resp.Error)
	}
	require.Equal(t, 3, h.SessionCount())

	// Kill one client; its delivery fails or its session is already gone.
	// Either way the other two must still receive the message.
	require.NoError(t, conns[0].CloseNow())

	h.Broadcast(ctx, map[string]string{"event": "announcement"})

	for _, conn := range conns[1:] {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"announcement"}`, string(data))
	}
}

func TestSessionOversizeFrame(t *testing.T) {
	ctx := testContext(t)

	registry := tools.NewRegistry(slog.Default())
	require.NoError(t, registry.Register(echoTool()))
	h, err := NewHandler(Config{Registry: registry, Logger: slog.Default(), MaxFrameSize: 128})
	require.NoError(t, err)

	conn := dial(t, ctx, h)

	// A frame under the limit is handled normally.
	resp := roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
	require.Nil(t, resp.Error)

	// A frame over the limit closes the connection; no JSON-RPC error is sent.
	oversize := `{"jsonrpc":"2.0","id":2,"method":"call_tool","params":{"tool":"echo","params":{"pad":"` +
		strings.Repeat("x", 256) + `"}}}`
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(oversize)))

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))

	require.Eventually(t, func() bool {
		return h.SessionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := testContext(t)
	h := newTestHandler(t, echoTool())

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	require.Equal(t, 0, h.SessionCount())

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	roundTrip(t, ctx, conn, `{"jsonrpc":"2.0","id":1,"method":"list_tools"}`)
	require.Equal(t, 1, h.SessionCount())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	// The session leaves the active set once its read loop observes the close.
	require.Eventually(t, func() bool {
		return h.SessionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
