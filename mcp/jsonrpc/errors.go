package jsonrpc

import "errors"

type ErrorCode int

// JSON-RPC 2.0 Error Codes
const (
	// Standard JSON-RPC 2.0 error codes
	ErrParseError     ErrorCode = -32700 // Invalid JSON was received by the server
	ErrInvalidRequest ErrorCode = -32600 // The JSON sent is not a valid Request object
	ErrMethodNotFound ErrorCode = -32601 // The method does not exist / is not available
	ErrInvalidParams  ErrorCode = -32602 // Invalid method parameter(s)
	ErrInternalError  ErrorCode = -32603 // Internal JSON-RPC error
)

// Error data kinds carried in Error.Data["kind"].
const (
	KindUnknownTool      = "unknown_tool"
	KindInvalidArguments = "invalid_arguments"
	KindInvalidParams    = "invalid_params"
)

// JSONRPCError is an error returned by a remote peer, decoded from a response.
type JSONRPCError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// NewJSONRPCError creates a new JSON-RPC error
func NewJSONRPCError(code ErrorCode, message string, data any) *JSONRPCError {
	return &JSONRPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface
func (e *JSONRPCError) Error() string {
	return e.Message
}

// Kind returns Data["kind"] when the error data is an object carrying one.
func (e *JSONRPCError) Kind() string {
	data, ok := e.Data.(map[string]any)
	if !ok {
		return ""
	}
	kind, _ := data["kind"].(string)
	return kind
}

// DataString returns a string field of the error data, or "".
func (e *JSONRPCError) DataString(key string) string {
	data, ok := e.Data.(map[string]any)
	if !ok {
		return ""
	}
	value, _ := data[key].(string)
	return value
}

// IsInvalidParams checks if the error is an invalid params error
func IsInvalidParams(err error) bool {
	return IsError(err, ErrInvalidParams)
}

// IsError checks if the error is a JSON-RPC error with the given code
func IsError(err error, code ErrorCode) bool {
	var e *JSONRPCError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
