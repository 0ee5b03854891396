package mcp

// Protocol version
const (
	ProtocolVersion = "2025-11-25"
)

// Versions accepted during negotiation, besides ProtocolVersion.
var supportedProtocolVersions = map[string]struct{}{
	"2024-11-05": {},
	"2025-03-26": {},
	"2025-06-18": {},
	"2025-11-25": {},
}

// IsSupportedProtocolVersion reports whether version can be negotiated.
func IsSupportedProtocolVersion(version string) bool {
	if version == "" {
		return false
	}
	if version == ProtocolVersion {
		return true
	}
	_, ok := supportedProtocolVersions[version]
	return ok
}

// Methods
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	legacyInitialized   = "initialized"
	MethodCancelled     = "notifications/cancelled"
	MethodToolsProgress = "notifications/progress"

	MethodLoggingSetLevel = "logging/setLevel"
	MethodLogMessage      = "notifications/message"
)

// IsInitializedNotification accepts both the current and the legacy method name.
func IsInitializedNotification(method string) bool {
	return method == MethodInitialized || method == legacyInitialized
}

// HTTP header names used by the streamable HTTP transport.
const (
	HeaderSessionID       = "MCP-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
)
