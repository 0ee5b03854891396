package http

import (
	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/mcp/jsonrpc"
)

// SendNotificationToSession writes a notification to the session's GET
// stream. A stream that fails to write is unbound.
func (s *Server) SendNotificationToSession(sessionID string, notification *jsonrpc.Notification) bool {
	transport, ok := s.sessionManager.GetTransport(sessionID)
	if !ok || transport == nil {
		return false
	}

	if err := transport.SendMessage(notification); err != nil {
		logger.Warn("Failed to send SSE notification", "session_id", sessionID, "method", notification.Method, "error", err)
		s.sessionManager.ClearTransportIfMatch(sessionID, transport)
		return false
	}
	return true
}

// BroadcastNotification sends method to every session holding a stream and
// returns how many received it.
func (s *Server) BroadcastNotification(method string, params any) int {
	return s.broadcast(jsonrpc.NewNotification(method, params), func(Session) bool { return true })
}

// BroadcastLog sends notifications/message to every stream whose
// logging/setLevel threshold admits level.
func (s *Server) BroadcastLog(level mcp.LogLevel, data any) int {
	notification := jsonrpc.NewNotification(mcp.MethodLogMessage, mcp.LogMessageParams{
		Level:  level,
		Logger: s.info.Name,
		Data:   data,
	})
	return s.broadcast(notification, func(session Session) bool {
		return session.LogLevel.Allows(level)
	})
}

func (s *Server) broadcast(notification *jsonrpc.Notification, include func(Session) bool) int {
	sent := 0
	for _, sessionID := range s.sessionManager.SessionIDsWithTransport() {
		session, ok := s.sessionManager.GetSession(sessionID)
		if !ok || !include(session) {
			continue
		}
		if s.SendNotificationToSession(sessionID, notification) {
			sent++
		}
	}
	if sent > 0 {
		logger.Debug("Notification broadcast", "method", notification.Method, "sessions", sent)
	}
	return sent
}
