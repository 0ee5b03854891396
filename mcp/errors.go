package mcp

import (
	"errors"
	"fmt"
)

// Errors shared by the registry, the transports and the client.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrDuplicateTool    = errors.New("tool already registered")
	ErrHandshake        = errors.New("handshake failed")
	ErrTransport        = errors.New("transport error")
	ErrRemoteTool       = errors.New("remote tool error")
)

func IsUnknownTool(err error) bool {
	return errors.Is(err, ErrUnknownTool)
}

func IsInvalidArguments(err error) bool {
	return errors.Is(err, ErrInvalidArguments)
}

// ArgumentError reports a missing or mistyped tool argument.
type ArgumentError struct {
	Tool     string
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	if e.Argument == "" {
		return fmt.Sprintf("invalid arguments for tool %q: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for tool %q: %s", e.Argument, e.Tool, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArguments
}

// RemoteToolError reports a tool that executed and failed on the server.
type RemoteToolError struct {
	Tool    string
	Message string
	Content []Content
	Data    map[string]any
}

func (e *RemoteToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %q failed", e.Tool)
	}
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Message)
}

func (e *RemoteToolError) Unwrap() error {
	return ErrRemoteTool
}

// NewRemoteToolError builds a RemoteToolError from an isError result.
func NewRemoteToolError(tool string, result *CallToolResult) *RemoteToolError {
	err := &RemoteToolError{Tool: tool}
	if result == nil {
		return err
	}
	err.Content = result.Content
	err.Data = result.StructuredContent
	if text, ok := result.Text(); ok {
		err.Message = text
	}
	return err
}
