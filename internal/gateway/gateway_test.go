// ABOUTME: End-to-end tests over the assembled gateway.
// ABOUTME: Dials the live session handler and invokes the built-in tools.

package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/rpc"
)

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpc.Error      `json:"error,omitempty"`
}

func newTestGateway(t *testing.T) (*Gateway, string) {
	t.Helper()

	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "hello.txt"), []byte("hello world"), 0644))

	cfg := config.Default()
	cfg.Tools.BasePath = base

	g, err := New(cfg, nil, "test")
	require.NoError(t, err)
	return g, base
}

func dialGateway(t *testing.T, g *Gateway) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(g.sessions)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, request string) wireResponse {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(request)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var resp wireResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestGatewayRegistersBuiltins(t *testing.T) {
	g, _ := newTestGateway(t)

	descriptors := g.Registry().List()
	require.Len(t, descriptors, 3)

	ids := make([]string, len(descriptors))
	for i, d := range descriptors {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"filesystem", "calc", "dataproc"}, ids)
}

func TestGatewayCalcCall(t *testing.T) {
	g, _ := newTestGateway(t)
	conn := dialGateway(t, g)

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","id":1,"method":"call_tool","params":{"tool":"calc","params":{"expr":"2+2*3"}}}`)

	require.Nil(t, resp.Error)
	assert.JSONEq(t, `1`, string(resp.ID))

	var result rpc.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.OK)
	assert.JSONEq(t, `{"ok":true,"value":8}`, string(result.Result))
}

func TestGatewayFilesystemSandbox(t *testing.T) {
	g, _ := newTestGateway(t)
	conn := dialGateway(t, g)

	t.Run("escape attempt is a domain failure", func(t *testing.T) {
		resp := roundTrip(t, conn, `{"jsonrpc":"2.0","id":2,"method":"call_tool","params":{"tool":"filesystem","params":{"action":"read","path":"../../etc/passwd"}}}`)

		require.Nil(t, resp.Error)

		var result rpc.CallToolResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.True(t, result.OK)

		var doc struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(result.Result, &doc))
		assert.False(t, doc.OK)
		assert.Contains(t, doc.Error, "outside")
	})

	t.Run("session survives and serves the next call", func(t *testing.T) {
		resp := roundTrip(t, conn, `{"jsonrpc":"2.0","id":3,"method":"call_tool","params":{"tool":"filesystem","params":{"action":"list","path":"."}}}`)

		require.Nil(t, resp.Error)

		var result rpc.CallToolResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.True(t, result.OK)
		assert.Contains(t, string(result.Result), "hello.txt")
	})
}

func TestGatewayListTools(t *testing.T) {
	g, _ := newTestGateway(t)
	conn := dialGateway(t, g)

	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","id":4,"method":"list_tools"}`)

	require.Nil(t, resp.Error)

	var result rpc.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 3)
	assert.Equal(t, "filesystem", result.Tools[0].ID)
}

func TestGatewayRun(t *testing.T) {
	g, _ := newTestGateway(t)
	g.config.Server.WSAddr = "127.0.0.1:0"
	g.config.Server.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	// Give the listeners a moment to bind, then ask for shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}
