package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Implementation names a client or server and its version.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool represents a tool definition as advertised by tools/list.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// LoggingCapability advertises notifications/message support.
type LoggingCapability struct{}

// ServerCapabilities is the capability set sent back from initialize.
type ServerCapabilities struct {
	Tools   *ToolsCapability   `json:"tools,omitempty"`
	Logging *LoggingCapability `json:"logging,omitempty"`
}

// ClientCapabilities is the capability set a client sends with initialize.
type ClientCapabilities struct {
	Experimental map[string]any `json:"experimental,omitempty"`
}

// InitializeParams are the params of an initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the server metadata returned by initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
	SessionID       string             `json:"sessionId,omitempty"`
}

// ListToolsParams are the params of a tools/list request.
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult is one page of tools/list.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams are the params of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the outcome of one tool invocation.
type CallToolResult struct {
	Content           []Content      `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError"`
}

// MarshalJSON keeps content an array even when empty.
func (r CallToolResult) MarshalJSON() ([]byte, error) {
	type alias CallToolResult
	out := alias(r)
	if out.Content == nil {
		out.Content = []Content{}
	}
	return json.Marshal(out)
}

// Text returns the text of the first text item.
func (r *CallToolResult) Text() (string, bool) {
	for _, item := range r.Content {
		if item.Type == ContentText {
			return item.Text, true
		}
	}
	return "", false
}

// First returns the first item of the given type.
func (r *CallToolResult) First(kind ContentType) (Content, bool) {
	for _, item := range r.Content {
		if item.Type == kind {
			return item, true
		}
	}
	return Content{}, false
}

// LogLevel is a syslog severity name as used by logging/setLevel.
type LogLevel string

const (
	LogDebug     LogLevel = "debug"
	LogInfo      LogLevel = "info"
	LogNotice    LogLevel = "notice"
	LogWarning   LogLevel = "warning"
	LogError     LogLevel = "error"
	LogCritical  LogLevel = "critical"
	LogAlert     LogLevel = "alert"
	LogEmergency LogLevel = "emergency"
)

var logLevelRank = map[LogLevel]int{
	LogDebug:     0,
	LogInfo:      1,
	LogNotice:    2,
	LogWarning:   3,
	LogError:     4,
	LogCritical:  5,
	LogAlert:     6,
	LogEmergency: 7,
}

// Valid reports whether l is a known severity.
func (l LogLevel) Valid() bool {
	_, ok := logLevelRank[l]
	return ok
}

// Allows reports whether a message at level passes a threshold of l. An
// empty threshold allows everything.
func (l LogLevel) Allows(level LogLevel) bool {
	if l == "" {
		return true
	}
	return logLevelRank[level] >= logLevelRank[l]
}

// SetLevelParams are the params of logging/setLevel.
type SetLevelParams struct {
	Level LogLevel `json:"level"`
}

// LogMessageParams are the params of notifications/message.
type LogMessageParams struct {
	Level  LogLevel `json:"level"`
	Logger string   `json:"logger,omitempty"`
	Data   any      `json:"data"`
}
