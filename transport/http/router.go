package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/calc-mcp-go/transport/shared"
)

const maxJSONRPCBodyBytes = 1 << 20

const headerSessionID = mcp.HeaderSessionID

func RegisterRoutes(e *echo.Echo, s *Server) {
	endpoint := s.config.Server.Endpoint
	e.GET("/", s.handleHTTPInfo)
	e.POST(endpoint, s.handleStreamableHTTPPost)
	e.GET(endpoint, s.handleStreamableHTTPGet)
	e.DELETE(endpoint, s.handleStreamableHTTPDelete)
	e.OPTIONS(endpoint, s.handleOptions)
}

func (s *Server) handleHTTPInfo(c echo.Context) error {
	logger.Debug("HTTP info requested", "remote_addr", c.RealIP())
	transports := make([]string, 0, len(s.config.Transports))
	for _, t := range s.config.Transports {
		if t.Enabled {
			transports = append(transports, t.Type)
		}
	}
	info := map[string]any{
		"name":                     s.info.Name,
		"version":                  s.info.Version,
		"protocolVersion":          mcp.ProtocolVersion,
		"transports":               transports,
		"stateless":                s.config.Server.Stateless,
		"tools":                    len(s.host.Tools()),
		"streamable_http_endpoint": s.config.Server.Endpoint,
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleOptions(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleStreamableHTTPPost(c echo.Context) error {
	logger.Debug("Streamable HTTP POST request", "remote_addr", c.RealIP())

	limitedBody := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limitedBody.Close()

	body, err := io.ReadAll(limitedBody)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return c.JSON(http.StatusRequestEntityTooLarge, invalidRequest("Request body too large"))
		}
		logger.Error("Failed to read request body", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrParseError), "Parse error", nil))
	}

	requests, prebuiltResponses, acceptedOneWay, err := shared.ParseJSONRPCFrame(body)
	if err != nil {
		logger.Warn("Failed to parse JSON-RPC request", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrParseError), "Parse error", nil))
	}
	if len(requests) == 0 && len(prebuiltResponses) == 0 && !acceptedOneWay {
		return c.JSON(http.StatusBadRequest, invalidRequest("Invalid request"))
	}

	requestedProtocolVersion := strings.TrimSpace(c.Request().Header.Get(mcp.HeaderProtocolVersion))
	if requestedProtocolVersion != "" && !mcp.IsSupportedProtocolVersion(requestedProtocolVersion) {
		return c.JSON(http.StatusBadRequest, invalidRequest("Unsupported MCP-Protocol-Version header"))
	}

	hasInitialize := false
	hasNonInitialize := false
	for _, req := range requests {
		if req.Method == mcp.MethodInitialize {
			hasInitialize = true
		} else {
			hasNonInitialize = true
		}
	}

	sessionID := ""
	if !s.config.Server.Stateless {
		var status int
		var failure *jsonrpc.Response
		needsSession := (len(requests) > 0 && (!hasInitialize || hasNonInitialize)) || acceptedOneWay
		sessionID, status, failure = s.resolvePostSession(c.Request().Header.Get(headerSessionID), hasInitialize, needsSession)
		if failure != nil {
			return c.JSON(status, failure)
		}

		requireProtocolHeader := false
		if hasNonInitialize || acceptedOneWay {
			requireProtocolHeader = s.requireProtocolVersionHeader(sessionID)
		}
		if failure := s.protocolVersionError(sessionID, requestedProtocolVersion, requireProtocolHeader); failure != nil {
			return c.JSON(http.StatusBadRequest, failure)
		}
	}

	responses := make([]any, 0, len(requests)+len(prebuiltResponses))
	responses = append(responses, prebuiltResponses...)

	for _, request := range requests {
		logger.Debug("Streamable HTTP request received", "method", request.Method, "id", request.ID, "session_id", sessionID)
		response := s.handleMessage(c.Request().Context(), request, sessionID)
		if request.IsNotification() || response == nil {
			continue
		}
		responses = append(responses, response)
	}

	if sessionID != "" {
		c.Response().Header().Set(headerSessionID, sessionID)
	}

	if len(requests) == 0 && len(prebuiltResponses) > 0 {
		return c.JSON(http.StatusBadRequest, prebuiltResponses[0])
	}

	if len(responses) == 0 {
		return c.NoContent(http.StatusAccepted)
	}
	return s.writeResponse(c, sessionID, responses[0])
}

// resolvePostSession issues a session for initialize and checks the header
// for everything else. A non-nil response is the failure to send with status.
func (s *Server) resolvePostSession(sessionID string, hasInitialize, needsSession bool) (string, int, *jsonrpc.Response) {
	if hasInitialize {
		if sessionID == "" {
			generated, err := generateSessionID()
			if err != nil {
				logger.Error("Failed to generate session ID", "error", err)
				return "", http.StatusInternalServerError, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInternalError), "Internal error", nil)
			}
			s.sessionManager.CreateSession(generated)
			logger.Debug("Generated new MCP session", "session_id", generated)
			return generated, 0, nil
		}
		if !s.sessionManager.TouchSession(sessionID) {
			return "", http.StatusNotFound, invalidRequest("Unknown MCP session")
		}
	}

	if needsSession && sessionID == "" {
		return "", http.StatusBadRequest, invalidRequest("Missing MCP-Session-Id header")
	}
	if sessionID != "" && !s.sessionManager.TouchSession(sessionID) {
		return "", http.StatusNotFound, invalidRequest("Unknown MCP session")
	}
	return sessionID, 0, nil
}

// writeResponse answers with plain JSON unless the client only accepts SSE.
func (s *Server) writeResponse(c echo.Context, sessionID string, response any) error {
	if !prefersEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return c.JSON(http.StatusOK, response)
	}

	transport, err := openEventStream(c, sessionID)
	if err != nil {
		logger.Warn("SSE response unavailable, falling back to JSON", "error", err)
		return c.JSON(http.StatusOK, response)
	}
	defer transport.Close()

	if err := transport.SendMessage(response); err != nil {
		logger.Warn("Failed to write SSE response", "session_id", sessionID, "error", err)
	}
	return nil
}

func (s *Server) handleStreamableHTTPGet(c echo.Context) error {
	logger.Info("Streamable HTTP GET request", "remote_addr", c.RealIP())

	if s.config.Server.Stateless {
		return c.JSON(http.StatusMethodNotAllowed, invalidRequest("SSE stream is not available in stateless mode"))
	}

	sessionID, status, failure := s.requireExistingSession(c)
	if failure != nil {
		return c.JSON(status, failure)
	}

	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return c.JSON(http.StatusBadRequest, invalidRequest("Accept header must include text/event-stream"))
	}

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	transport, err := openEventStream(c, sessionID, stopStream)
	if err != nil {
		return c.JSON(http.StatusMethodNotAllowed, invalidRequest("SSE stream is not available"))
	}
	if err := transport.SendComment("stream opened"); err != nil {
		logger.Warn("Failed to write initial SSE comment", "session_id", sessionID, "error", err)
		return nil
	}

	// Publish transport only after SSE headers + initial frame are sent.
	// This prevents concurrent notification writes from racing with stream setup.
	if !s.sessionManager.SetTransport(sessionID, transport) {
		transport.Close()
		logger.Warn("SSE session disappeared before stream binding", "session_id", sessionID)
		return nil
	}
	defer s.sessionManager.ClearTransportIfMatch(sessionID, transport)

	var keepAlive <-chan time.Time
	if seconds := s.config.Server.KeepAliveSeconds; seconds > 0 {
		ticker := time.NewTicker(time.Duration(seconds) * time.Second)
		defer ticker.Stop()
		keepAlive = ticker.C
	}

	for {
		select {
		case <-streamCtx.Done():
			return nil
		case <-keepAlive:
			if err := transport.SendComment("keepalive"); err != nil {
				logger.Debug("SSE keepalive failed, closing stream", "session_id", sessionID, "error", err)
				return nil
			}
			s.sessionManager.TouchSession(sessionID)
		}
	}
}

func (s *Server) handleStreamableHTTPDelete(c echo.Context) error {
	logger.Info("Streamable HTTP DELETE request", "remote_addr", c.RealIP())

	if s.config.Server.Stateless {
		return c.JSON(http.StatusMethodNotAllowed, invalidRequest("Sessions are disabled in stateless mode"))
	}

	sessionID, status, failure := s.requireExistingSession(c)
	if failure != nil {
		return c.JSON(status, failure)
	}
	s.sessionManager.RemoveSession(sessionID)
	logger.Debug("MCP session terminated", "session_id", sessionID)
	return c.NoContent(http.StatusNoContent)
}

// requireExistingSession validates the session and protocol headers shared by
// GET and DELETE.
func (s *Server) requireExistingSession(c echo.Context) (string, int, *jsonrpc.Response) {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return "", http.StatusBadRequest, invalidRequest("Missing MCP-Session-Id header")
	}
	if !s.sessionManager.HasSession(sessionID) {
		return "", http.StatusNotFound, invalidRequest("Unknown MCP session")
	}

	requestedProtocolVersion := strings.TrimSpace(c.Request().Header.Get(mcp.HeaderProtocolVersion))
	if failure := s.protocolVersionError(sessionID, requestedProtocolVersion, s.requireProtocolVersionHeader(sessionID)); failure != nil {
		return "", http.StatusBadRequest, failure
	}
	return sessionID, 0, nil
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request, sessionID string) any {
	switch {
	case msg.Method == mcp.MethodInitialize:
		logger.Debug("Handling initialize message", "request_id", msg.ID)
		return s.handleInit(msg, sessionID)
	case mcp.IsInitializedNotification(msg.Method):
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil)
		}
		logger.Debug("Handling initialized notification", "session_id", sessionID)
		if sessionID != "" {
			s.sessionManager.MarkInitialized(sessionID)
		}
		return nil
	case msg.Method == mcp.MethodLoggingSetLevel && sessionID != "":
		level, failure := shared.ParseSetLevel(msg)
		if failure != nil {
			return failure
		}
		s.sessionManager.SetLogLevel(sessionID, level)
		logger.Debug("Session log level updated", "session_id", sessionID, "level", level)
		return jsonrpc.NewResponse(msg.ID, map[string]any{})
	default:
		return shared.DispatchStandardMethod(ctx, msg, s.host)
	}
}

func (s *Server) handleInit(msg jsonrpc.Request, sessionID string) *jsonrpc.Response {
	negotiatedVersion := shared.NegotiateProtocolVersion(msg.Params)
	if sessionID != "" {
		s.sessionManager.SetProtocolVersion(sessionID, negotiatedVersion)
	}
	logger.Debug("Handling init message", "request_id", msg.ID, "protocol_version", negotiatedVersion, "session_id", sessionID)

	// Logging needs a session to carry the GET stream and the level.
	result := shared.BuildInitializeResult(s.info, negotiatedVersion, s.config.Description, sessionID, sessionID != "")
	return jsonrpc.NewResponse(msg.ID, result)
}

func generateSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read cryptographic random bytes: %w", err)
	}
	return "session_" + hex.EncodeToString(buf), nil
}

// protocolVersionError returns the failure for a bad or missing
// MCP-Protocol-Version header, or nil when the header is acceptable.
func (s *Server) protocolVersionError(sessionID, requestedVersion string, requireHeader bool) *jsonrpc.Response {
	if s.isProtocolVersionAccepted(sessionID, requestedVersion, requireHeader) {
		return nil
	}
	if requestedVersion == "" && requireHeader {
		return invalidRequest("Missing MCP-Protocol-Version header")
	}
	return invalidRequest("Invalid MCP-Protocol-Version header")
}

func (s *Server) isProtocolVersionAccepted(sessionID string, requestedVersion string, requireHeader bool) bool {
	if requestedVersion != "" {
		if !mcp.IsSupportedProtocolVersion(requestedVersion) {
			return false
		}

		if sessionID != "" {
			if negotiatedVersion, ok := s.sessionManager.GetProtocolVersion(sessionID); ok && negotiatedVersion != "" && negotiatedVersion != requestedVersion {
				return false
			}
		}
		return true
	}

	return !requireHeader
}

func (s *Server) requireProtocolVersionHeader(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	negotiatedVersion, ok := s.sessionManager.GetProtocolVersion(sessionID)
	if !ok {
		return true
	}
	return strings.TrimSpace(negotiatedVersion) == ""
}

func invalidRequest(message string) *jsonrpc.Response {
	return jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), message, nil)
}

func acceptsEventStream(acceptHeader string) bool {
	return acceptsMediaType(acceptHeader, "text/event-stream")
}

// prefersEventStream is true when SSE is acceptable and JSON is not.
func prefersEventStream(acceptHeader string) bool {
	return acceptsEventStream(acceptHeader) &&
		!acceptsMediaType(acceptHeader, echo.MIMEApplicationJSON) &&
		!acceptsMediaType(acceptHeader, "*/*")
}

func acceptsMediaType(acceptHeader, mediaType string) bool {
	for _, part := range strings.Split(acceptHeader, ",") {
		mime := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mime, mediaType) {
			return true
		}
	}
	return false
}
