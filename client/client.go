// Package client invokes tools on an MCP server over streamable HTTP.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
)

var (
	ErrNotInitialized = errors.New("client not initialized")
	ErrClosed         = errors.New("client closed")
)

// State is the client lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateInitialized
	StateCalling
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInitialized:
		return "initialized"
	case StateCalling:
		return "calling"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const defaultTimeout = 30 * time.Second

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client the session transport is built on.
// Its Transport is wrapped to add the configured headers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithClientInfo sets the clientInfo sent with initialize.
func WithClientInfo(info mcp.Implementation) Option {
	return func(c *Client) {
		c.info = info
	}
}

// WithProtocolVersion sets the protocol version requested during initialize.
func WithProtocolVersion(version string) Option {
	return func(c *Client) {
		c.requestedVersion = version
	}
}

// WithTimeout bounds each call, the handshake included.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogHandler receives notifications/message sent by the server on the
// session stream.
func WithLogHandler(fn func(mcp.LogMessageParams)) Option {
	return func(c *Client) {
		c.onLog = fn
	}
}

// Client is one session against one endpoint. Calls are serialized.
type Client struct {
	endpoint         string
	http             *http.Client
	headers          map[string]string
	info             mcp.Implementation
	requestedVersion string
	timeout          time.Duration
	onLog            func(mcp.LogMessageParams)

	mu      sync.Mutex
	state   State
	sdk     *mcpsdk.Client
	session *mcpsdk.ClientSession
	server  *mcp.InitializeResult
}

// Connect validates endpoint and prepares the session transport. No request
// is sent until Initialize.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", mcp.ErrTransport, err)
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid endpoint %q", mcp.ErrTransport, endpoint)
	}

	c := &Client{
		endpoint:         u.String(),
		headers:          make(map[string]string),
		info:             mcp.Implementation{Name: "calc-mcp-client", Version: "0.1.0"},
		requestedVersion: mcp.ProtocolVersion,
		timeout:          defaultTimeout,
		state:            StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.sdk = mcpsdk.NewClient(&mcpsdk.Implementation{Name: c.info.Name, Version: c.info.Version}, &mcpsdk.ClientOptions{
		Logger:                logger.Default().Logger,
		LoggingMessageHandler: c.handleLogMessage,
	})
	c.state = StateConnected
	logger.Debug("MCP client connected", "endpoint", c.endpoint)
	return c, nil
}

// WithSession connects, initializes, runs fn and always closes the client.
func WithSession(ctx context.Context, endpoint string, fn func(context.Context, *Client) error, opts ...Option) (err error) {
	c, err := Connect(ctx, endpoint, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if _, err := c.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}

// Initialize performs the handshake. Calling it again on an initialized
// client returns the cached server metadata.
func (c *Client) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return nil, ErrClosed
	case StateInitialized:
		result := *c.server
		return &result, nil
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	result, err := c.handshake(ctx)
	if err != nil {
		logger.Warn("MCP handshake failed", "endpoint", c.endpoint, "error", err)
		return nil, fmt.Errorf("%w: %w", mcp.ErrHandshake, err)
	}

	c.server = result
	c.state = StateInitialized
	logger.Info("MCP session initialized",
		"endpoint", c.endpoint,
		"server", result.ServerInfo.Name,
		"protocol_version", result.ProtocolVersion,
		"session_id", result.SessionID)

	out := *result
	return &out, nil
}

// handshake opens the SDK session, which sends initialize and
// notifications/initialized, then checks what the server offered.
func (c *Client) handshake(ctx context.Context) (*mcp.InitializeResult, error) {
	session, err := c.sdk.Connect(ctx, c.transport(), &mcpsdk.ClientSessionOptions{
		ProtocolVersion: c.requestedVersion,
	})
	if err != nil {
		return nil, classify(err)
	}

	var result mcp.InitializeResult
	if err := convert(session.InitializeResult(), &result); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("%w: decode initialize result: %w", mcp.ErrTransport, err)
	}
	if !mcp.IsSupportedProtocolVersion(result.ProtocolVersion) {
		_ = session.Close()
		return nil, fmt.Errorf("server negotiated unsupported protocol version %q", result.ProtocolVersion)
	}
	if result.Capabilities.Tools == nil {
		_ = session.Close()
		return nil, errors.New("server does not advertise tools")
	}
	result.SessionID = session.ID()

	c.session = session
	return &result, nil
}

// CallTool invokes name with arguments. A result flagged isError is returned
// together with a *mcp.RemoteToolError.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if arguments == nil {
		arguments = map[string]any{}
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	raw, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, mapCallError(name, err)
	}

	var result mcp.CallToolResult
	if err := convert(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode tools/call result: %w", mcp.ErrTransport, err)
	}
	for i, content := range result.Content {
		if err := content.Validate(); err != nil {
			return nil, fmt.Errorf("%w: content %d: %w", mcp.ErrTransport, i, err)
		}
	}

	if result.IsError {
		remote := mcp.NewRemoteToolError(name, &result)
		logger.Debug("Remote tool reported an error", "tool", name, "message", remote.Message)
		return &result, remote
	}
	return &result, nil
}

// ListTools follows tools/list pagination and returns every tool.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var all []mcp.Tool
	cursor := ""
	for {
		page, err := c.session.ListTools(ctx, &mcpsdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, classify(err)
		}
		for _, tool := range page.Tools {
			var converted mcp.Tool
			if err := convert(tool, &converted); err != nil {
				return nil, fmt.Errorf("%w: decode tool %q: %w", mcp.ErrTransport, tool.Name, err)
			}
			all = append(all, converted)
		}
		if page.NextCursor == "" {
			return all, nil
		}
		if page.NextCursor == cursor {
			return nil, fmt.Errorf("%w: tools/list cursor did not advance", mcp.ErrTransport)
		}
		cursor = page.NextCursor
	}
}

// Ping checks liveness of the session.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	return classify(c.session.Ping(ctx, nil))
}

// Close ends the server session when there is one. It is safe to call twice.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed

	if c.session == nil {
		return nil
	}
	sessionID := c.session.ID()
	err := c.session.Close()
	c.session = nil
	if err != nil && !errors.Is(err, mcpsdk.ErrSessionMissing) {
		logger.Warn("Failed to terminate MCP session", "session_id", sessionID, "error", err)
		return classify(err)
	}
	logger.Debug("MCP session terminated", "session_id", sessionID)
	return nil
}

// State returns the lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerInfo returns initialize metadata once the handshake succeeded.
func (c *Client) ServerInfo() (mcp.InitializeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return mcp.InitializeResult{}, false
	}
	return *c.server, true
}

// SessionID returns the server-issued session id, empty in stateless mode.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return ""
	}
	return c.server.SessionID
}

func (c *Client) begin() error {
	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateInitialized:
		c.state = StateCalling
		return nil
	default:
		return ErrNotInitialized
	}
}

func (c *Client) end() {
	if c.state == StateCalling {
		c.state = StateInitialized
	}
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) handleLogMessage(_ context.Context, req *mcpsdk.LoggingMessageRequest) {
	if req == nil || req.Params == nil {
		return
	}
	msg := mcp.LogMessageParams{
		Level:  mcp.LogLevel(req.Params.Level),
		Logger: req.Params.Logger,
		Data:   req.Params.Data,
	}
	logger.Debug("Server log message", "level", msg.Level, "logger", msg.Logger, "data", msg.Data)
	if c.onLog != nil {
		c.onLog(msg)
	}
}
