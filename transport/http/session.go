package http

import (
	"sort"
	"sync"
	"time"

	"github.com/slighter12/calc-mcp-go/mcp"
)

// SessionManager manages MCP sessions for Streamable HTTP
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// Session represents an MCP session
type Session struct {
	ID              string
	Created         time.Time
	LastSeen        time.Time
	Initialized     bool
	ProtocolVersion string
	// LogLevel is the notifications/message threshold; empty means all levels.
	LogLevel  mcp.LogLevel
	Transport *StreamableHTTPTransport
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// CreateSession creates a new session or refreshes an existing one.
func (sm *SessionManager) CreateSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	if session, exists := sm.sessions[sessionID]; exists {
		session.LastSeen = now
		return
	}
	sm.sessions[sessionID] = &Session{
		ID:       sessionID,
		Created:  now,
		LastSeen: now,
	}
}

// TouchSession marks a session as used and reports whether it exists.
func (sm *SessionManager) TouchSession(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if exists {
		session.LastSeen = sm.now()
	}
	return exists
}

// HasSession reports whether a session exists without refreshing it.
func (sm *SessionManager) HasSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, exists := sm.sessions[sessionID]
	return exists
}

// GetSession returns a copy of the session state.
func (sm *SessionManager) GetSession(sessionID string) (Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return Session{}, false
	}
	return *session, true
}

func (sm *SessionManager) MarkInitialized(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.Initialized = true
	}
}

func (sm *SessionManager) SetProtocolVersion(sessionID, version string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.ProtocolVersion = version
	}
}

func (sm *SessionManager) GetProtocolVersion(sessionID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		return "", false
	}
	return session.ProtocolVersion, true
}

// SetLogLevel records the level requested through logging/setLevel.
func (sm *SessionManager) SetLogLevel(sessionID string, level mcp.LogLevel) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	session, exists := sm.sessions[sessionID]
	if exists {
		session.LogLevel = level
	}
	return exists
}

// SetTransport binds an SSE stream to a session, closing any stream it replaces.
func (sm *SessionManager) SetTransport(sessionID string, transport *StreamableHTTPTransport) bool {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		sm.mu.Unlock()
		return false
	}
	previous := session.Transport
	session.Transport = transport
	session.LastSeen = sm.now()
	sm.mu.Unlock()

	if previous != nil && previous != transport {
		previous.Close()
	}
	return true
}

func (sm *SessionManager) GetTransport(sessionID string) (*StreamableHTTPTransport, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	if !exists || session.Transport == nil {
		return nil, false
	}
	return session.Transport, true
}

// ClearTransportIfMatch unbinds transport only if it is still the session's stream.
func (sm *SessionManager) ClearTransportIfMatch(sessionID string, transport *StreamableHTTPTransport) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists && session.Transport == transport {
		session.Transport = nil
	}
}

// SessionIDsWithTransport lists sessions that currently hold an SSE stream.
func (sm *SessionManager) SessionIDsWithTransport() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := make([]string, 0, len(sm.sessions))
	for id, session := range sm.sessions {
		if session.Transport != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RemoveSession removes a session
func (sm *SessionManager) RemoveSession(sessionID string) bool {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if exists {
		delete(sm.sessions, sessionID)
	}
	sm.mu.Unlock()

	if exists && session.Transport != nil {
		session.Transport.Close()
	}
	return exists
}

// CleanupSessions removes sessions idle longer than timeout and returns how
// many were removed.
func (sm *SessionManager) CleanupSessions(timeout time.Duration) int {
	sm.mu.Lock()
	now := sm.now()
	var expired []*Session
	for sessionID, session := range sm.sessions {
		if now.Sub(session.LastSeen) > timeout {
			expired = append(expired, session)
			delete(sm.sessions, sessionID)
		}
	}
	sm.mu.Unlock()

	for _, session := range expired {
		if session.Transport != nil {
			session.Transport.Close()
		}
	}
	return len(expired)
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
