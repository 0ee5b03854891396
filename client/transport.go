package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	sdkjsonrpc "github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/mcp/jsonrpc"
)

// transport builds the streamable HTTP transport for one session. There is
// no client-level timeout: the standalone SSE stream outlives single calls.
func (c *Client) transport() *mcpsdk.StreamableClientTransport {
	hc := &http.Client{}
	if c.http != nil {
		copied := *c.http
		hc = &copied
	}
	hc.Transport = &headerTransport{base: hc.Transport, headers: c.headers}

	return &mcpsdk.StreamableClientTransport{
		Endpoint:   c.endpoint,
		HTTPClient: hc,
	}
}

// headerTransport adds fixed headers that the session did not set itself, so
// the negotiated protocol version and session id always win.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for key, value := range t.headers {
			if req.Header.Get(key) == "" {
				req.Header.Set(key, value)
			}
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// convert re-decodes an SDK value into this module's wire types.
func convert(from, to any) error {
	raw, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, to)
}

// remoteError extracts the JSON-RPC error a peer answered with, if any.
func remoteError(err error) *jsonrpc.JSONRPCError {
	var wire *sdkjsonrpc.Error
	if !errors.As(err, &wire) {
		return nil
	}
	var data any
	if len(wire.Data) > 0 {
		if decodeErr := json.Unmarshal(wire.Data, &data); decodeErr != nil {
			logger.Debug("Ignoring undecodable JSON-RPC error data", "code", wire.Code, "error", decodeErr)
		}
	}
	return jsonrpc.NewJSONRPCError(jsonrpc.ErrorCode(wire.Code), wire.Message, data)
}

// classify keeps JSON-RPC errors as *jsonrpc.JSONRPCError and files every
// other failure under mcp.ErrTransport.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if rpcErr := remoteError(err); rpcErr != nil {
		return rpcErr
	}
	if errors.Is(err, mcp.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", mcp.ErrTransport, err)
}

// mapCallError converts tools/call failures into the error taxonomy.
func mapCallError(tool string, err error) error {
	err = classify(err)
	var rpcErr *jsonrpc.JSONRPCError
	if !jsonrpc.IsInvalidParams(err) || !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.Kind() {
	case jsonrpc.KindUnknownTool:
		return fmt.Errorf("%w %q: %w", mcp.ErrUnknownTool, tool, rpcErr)
	case jsonrpc.KindInvalidArguments:
		reason := rpcErr.DataString("reason")
		if reason == "" {
			reason = rpcErr.Message
		}
		return &mcp.ArgumentError{
			Tool:     tool,
			Argument: rpcErr.DataString("argument"),
			Reason:   reason,
		}
	default:
		return rpcErr
	}
}
