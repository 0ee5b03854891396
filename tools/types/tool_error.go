package types

import (
	"errors"
	"fmt"
)

const (
	KindNotAvailable     = "not_available"
	KindInvalidOperation = "invalid_operation"
)

// ToolError marks tool failures that should be surfaced as structured isError payloads.
type ToolError struct {
	Kind    string
	Message string
	Data    map[string]any
}

func (e *ToolError) Error() string {
	if e == nil {
		return "tool error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return fmt.Sprintf("tool error: %s", e.Kind)
	}
	return "tool error"
}

func NewToolError(kind, message string, data map[string]any) *ToolError {
	return &ToolError{Kind: kind, Message: message, Data: data}
}

func NewNotAvailableError(message string, data map[string]any) *ToolError {
	if message == "" {
		message = "Tool is temporarily unavailable"
	}
	return NewToolError(KindNotAvailable, message, data)
}

func NewInvalidOperationError(message string, data map[string]any) *ToolError {
	return NewToolError(KindInvalidOperation, message, data)
}

func AsToolError(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}
