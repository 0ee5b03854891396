package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/calc-mcp-go/client"
	"github.com/slighter12/calc-mcp-go/config"
	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/tools"
	"github.com/slighter12/calc-mcp-go/tools/media"
	mcphttp "github.com/slighter12/calc-mcp-go/transport/http"
)

func TestMain(m *testing.M) {
	logger.Init(logger.GetLevelFromString("error"), logger.FormatJSON)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, stateless bool) (*httptest.Server, *mcphttp.Server) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Server.Stateless = stateless

	registry, err := tools.NewDefaultRegistry(tools.Options{Namespace: cfg.Tools.Namespace})
	require.NoError(t, err)

	server := mcphttp.NewServer(cfg, registry, mcp.Implementation{Name: "calc-mcp-go", Version: "0.1.0"})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, server
}

func connect(t *testing.T, endpoint string, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.Connect(context.Background(), endpoint, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectRejectsInvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "ftp://host/mcp", "http:///mcp"} {
		_, err := client.Connect(context.Background(), endpoint)
		assert.ErrorIs(t, err, mcp.ErrTransport, endpoint)
	}
}

func TestInitializeAndCallTools(t *testing.T) {
	ts, server := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp", client.WithClientInfo(mcp.Implementation{Name: "test", Version: "1"}))
	assert.Equal(t, client.StateConnected, c.State())

	info, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "calc-mcp-go", info.ServerInfo.Name)
	assert.Equal(t, mcp.ProtocolVersion, info.ProtocolVersion)
	assert.Equal(t, client.StateInitialized, c.State())
	assert.NotEmpty(t, c.SessionID())
	assert.True(t, server.GetSessionManager().HasSession(c.SessionID()))

	again, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, info.ServerInfo, again.ServerInfo)

	require.NoError(t, c.Ping(context.Background()))

	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 9)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "calculator/add", args: map[string]any{"a": 2, "b": 3}, want: "5"},
		{name: "calculator/subtract", args: map[string]any{"a": 25, "b": 10}, want: "15"},
		{name: "calculator/multiply", args: map[string]any{"a": 7, "b": 10}, want: "70"},
		{name: "calculator/divide", args: map[string]any{"a": 7, "b": 2}, want: "3.5"},
		{name: "calculator/echo", args: map[string]any{"message": "hi"}, want: "Echo: hi"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := c.CallTool(context.Background(), tc.name, tc.args)
			require.NoError(t, err)
			text, ok := result.Text()
			require.True(t, ok)
			assert.Equal(t, tc.want, text)
		})
	}

	require.NoError(t, c.Close())
	assert.Equal(t, client.StateClosed, c.State())
	assert.False(t, server.GetSessionManager().HasSession(info.SessionID))
	require.NoError(t, c.Close())
}

func TestCallToolErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp")
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	_, err = c.CallTool(context.Background(), "nonexistent", nil)
	assert.ErrorIs(t, err, mcp.ErrUnknownTool)
	assert.True(t, mcp.IsUnknownTool(err))

	_, err = c.CallTool(context.Background(), "calculator/add", map[string]any{"a": 1})
	var argErr *mcp.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "b", argErr.Argument)
	assert.Equal(t, "calculator/add", argErr.Tool)
	assert.ErrorIs(t, err, mcp.ErrInvalidArguments)

	_, err = c.CallTool(context.Background(), "calculator/add", map[string]any{"a": "one", "b": 2})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "a", argErr.Argument)

	result, err := c.CallTool(context.Background(), "calculator/divide", map[string]any{"a": 1, "b": 0})
	var remote *mcp.RemoteToolError
	require.ErrorAs(t, err, &remote)
	assert.ErrorIs(t, err, mcp.ErrRemoteTool)
	assert.Equal(t, "division by zero", remote.Message)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	assert.Equal(t, client.StateInitialized, c.State())
}

func TestImageRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp")
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	result, err := c.CallTool(context.Background(), "calculator/return_image", nil)
	require.NoError(t, err)

	item, ok := result.First(mcp.ContentImage)
	require.True(t, ok)
	assert.Equal(t, "image/png", item.MIMEType)

	raw, err := item.Bytes()
	require.NoError(t, err)
	want, _, err := media.NewImageAsset("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, want, raw)

	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}

func TestStateGuards(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp")

	_, err := c.CallTool(context.Background(), "calculator/add", nil)
	assert.ErrorIs(t, err, client.ErrNotInitialized)
	assert.ErrorIs(t, c.Ping(context.Background()), client.ErrNotInitialized)

	require.NoError(t, c.Close())
	_, err = c.Initialize(context.Background())
	assert.ErrorIs(t, err, client.ErrClosed)
	_, err = c.ListTools(context.Background())
	assert.ErrorIs(t, err, client.ErrClosed)
}

func TestStatelessServer(t *testing.T) {
	ts, _ := newTestServer(t, true)
	c := connect(t, ts.URL+"/mcp")

	_, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.SessionID())

	result, err := c.CallTool(context.Background(), "calculator/multiply", map[string]any{"a": 6, "b": 7})
	require.NoError(t, err)
	text, _ := result.Text()
	assert.Equal(t, "42", text)
	assert.NoError(t, c.Close())
}

func TestHandshakeFailureWrapsErrHandshake(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := connect(t, ts.URL+"/mcp")
	_, err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, mcp.ErrHandshake)
	assert.ErrorIs(t, err, mcp.ErrTransport)
	assert.Equal(t, client.StateConnected, c.State())
}

// scriptedRequest is the part of a JSON-RPC request the scripted servers need.
type scriptedRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func TestSSEResponseIsParsed(t *testing.T) {
	var sawHeader atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "secret" {
			sawHeader.Store(true)
		}
		switch r.Method {
		case http.MethodGet:
			http.Error(w, "no stream", http.StatusMethodNotAllowed)
			return
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
			return
		}

		var req scriptedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case mcp.MethodInitialize:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(mcp.HeaderSessionID, "session_sse")
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2025-06-18","capabilities":{"tools":{"listChanged":false}},"serverInfo":{"name":"sse","version":"1"}}}`, req.ID)
		case mcp.MethodToolsCall:
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, ": keepalive\n\n"+
				"event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/message\",\"params\":{\"level\":\"info\",\"data\":\"x\"}}\n\n"+
				"id: 1\nevent: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":%s,\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"70\"}],\"isError\":false}}\n\n", req.ID)
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	defer ts.Close()

	logs := make(chan mcp.LogMessageParams, 1)
	c := connect(t, ts.URL+"/mcp",
		client.WithHeaders(map[string]string{"X-Api-Key": "secret"}),
		client.WithLogHandler(func(msg mcp.LogMessageParams) {
			select {
			case logs <- msg:
			default:
			}
		}))
	info, err := c.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-06-18", info.ProtocolVersion)
	assert.Equal(t, "session_sse", c.SessionID())

	result, err := c.CallTool(context.Background(), "multiply", map[string]any{"a": 7, "b": 10})
	require.NoError(t, err)
	text, _ := result.Text()
	assert.Equal(t, "70", text)
	assert.True(t, sawHeader.Load())

	select {
	case msg := <-logs:
		assert.Equal(t, mcp.LogInfo, msg.Level)
		assert.Equal(t, "x", msg.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("log notification on the call stream was not delivered")
	}
}

func TestUnmatchedResponseFailsHandshake(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":99,"result":{}}`))
	}))
	defer ts.Close()

	c := connect(t, ts.URL+"/mcp", client.WithTimeout(500*time.Millisecond))
	_, err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, mcp.ErrHandshake)
	assert.ErrorIs(t, err, mcp.ErrTransport)
	assert.Equal(t, client.StateConnected, c.State())
}

func TestConnectionLossIsTransportError(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp")
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	// Refuse new connections, then drop the open ones, the session stream included.
	require.NoError(t, ts.Listener.Close())
	ts.CloseClientConnections()

	_, err = c.CallTool(context.Background(), "calculator/add", map[string]any{"a": 1, "b": 2})
	assert.ErrorIs(t, err, mcp.ErrTransport)
}

func TestServerLogMessagesReachHandler(t *testing.T) {
	ts, server := newTestServer(t, false)
	logs := make(chan mcp.LogMessageParams, 1)
	c := connect(t, ts.URL+"/mcp", client.WithLogHandler(func(msg mcp.LogMessageParams) {
		select {
		case logs <- msg:
		default:
		}
	}))
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	// The session stream opens in the background after initialize.
	var msg mcp.LogMessageParams
	require.Eventually(t, func() bool {
		server.BroadcastLog(mcp.LogInfo, map[string]any{"event": "asset_reloaded"})
		select {
		case msg = <-logs:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, mcp.LogInfo, msg.Level)
	assert.Equal(t, "calc-mcp-go", msg.Logger)
	assert.Equal(t, map[string]any{"event": "asset_reloaded"}, msg.Data)
}

func TestWithSessionAlwaysCloses(t *testing.T) {
	ts, server := newTestServer(t, false)

	var sessionID string
	sentinel := errors.New("stop")
	err := client.WithSession(context.Background(), ts.URL+"/mcp", func(ctx context.Context, c *client.Client) error {
		sessionID = c.SessionID()
		_, err := c.CallTool(ctx, "calculator/add", map[string]any{"a": 1, "b": 1})
		require.NoError(t, err)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	require.NotEmpty(t, sessionID)
	assert.False(t, server.GetSessionManager().HasSession(sessionID))
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	ts, _ := newTestServer(t, false)
	c := connect(t, ts.URL+"/mcp")
	_, err := c.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CallTool(context.Background(), "calculator/add", map[string]any{"a": i, "b": 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initialized", client.StateInitialized.String())
	assert.Equal(t, "state(42)", client.State(42).String())
}
