package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/calc-mcp-go/tools/types"
)

const pageSize = 50

const toolExecutionErrorMessage = "Tool execution failed"

// ToolHost is the registry surface the transports need.
type ToolHost interface {
	Tools() []mcp.Tool
	Invoke(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error)
}

func BuildToolsListResponse(msg jsonrpc.Request, tools []mcp.Tool) *jsonrpc.Response {
	sortedTools := append([]mcp.Tool(nil), tools...)
	sort.Slice(sortedTools, func(i, j int) bool {
		return sortedTools[i].Name < sortedTools[j].Name
	})

	start, err := ParseCursor(msg.Params, len(sortedTools))
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), err.Error(), nil)
	}
	end := min(start+pageSize, len(sortedTools))

	result := mcp.ListToolsResult{
		Tools: sortedTools[start:end],
	}
	if end < len(sortedTools) {
		result.NextCursor = strconv.Itoa(end)
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

func BuildPingResponse(msg jsonrpc.Request) *jsonrpc.Response {
	return jsonrpc.NewResponse(msg.ID, map[string]any{})
}

// DispatchStandardMethod handles shared non-initialize JSON-RPC methods for all transports.
func DispatchStandardMethod(ctx context.Context, msg jsonrpc.Request, host ToolHost) any {
	switch msg.Method {
	case mcp.MethodToolsList:
		return BuildToolsListResponse(msg, host.Tools())
	case mcp.MethodToolsCall:
		return BuildToolCallResponse(ctx, msg, host)
	case mcp.MethodPing:
		return BuildPingResponse(msg)
	case mcp.MethodCancelled, mcp.MethodToolsProgress:
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil)
		}
		return nil
	default:
		if !msg.IsNotification() {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrMethodNotFound), "Method not found", map[string]any{
				"method": msg.Method,
			})
		}
		return nil
	}
}

func semanticError(id any, code jsonrpc.ErrorCode, message, kind string, extra map[string]any) *jsonrpc.Response {
	data := map[string]any{
		"kind": kind,
	}
	for key, value := range extra {
		data[key] = value
	}
	return jsonrpc.NewErrorResponse(id, int(code), message, data)
}

// BuildToolCallResponse runs one tools/call. Unknown tools and rejected
// arguments are JSON-RPC errors; anything the tool itself reports becomes an
// isError result.
func BuildToolCallResponse(ctx context.Context, msg jsonrpc.Request, host ToolHost) *jsonrpc.Response {
	// Numbers stay json.Number so integer arguments beyond 2^53 survive.
	var params mcp.CallToolParams
	decoder := json.NewDecoder(bytes.NewReader(msg.Params))
	decoder.UseNumber()
	if err := decoder.Decode(&params); err != nil {
		return semanticError(msg.ID, jsonrpc.ErrInvalidParams, "Invalid tool call payload", jsonrpc.KindInvalidParams, map[string]any{
			"field":   "params",
			"problem": "malformed_payload",
		})
	}

	toolName := strings.TrimSpace(params.Name)
	if toolName == "" {
		return semanticError(msg.ID, jsonrpc.ErrInvalidParams, "Tool name is required", jsonrpc.KindInvalidParams, map[string]any{
			"field":   "name",
			"problem": "missing",
		})
	}

	arguments := params.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}

	result, err := host.Invoke(ctx, toolName, arguments)
	if err != nil {
		if mcp.IsUnknownTool(err) {
			return semanticError(msg.ID, jsonrpc.ErrInvalidParams, fmt.Sprintf("Unknown tool: %s", toolName), jsonrpc.KindUnknownTool, map[string]any{
				"tool": toolName,
			})
		}
		var argErr *mcp.ArgumentError
		if errors.As(err, &argErr) {
			extra := map[string]any{
				"tool":   toolName,
				"reason": argErr.Reason,
			}
			if argErr.Argument != "" {
				extra["argument"] = argErr.Argument
			}
			return semanticError(msg.ID, jsonrpc.ErrInvalidParams, argErr.Error(), jsonrpc.KindInvalidArguments, extra)
		}

		logger.Warn("Tool call failed", "tool", toolName, "error", err)
		return jsonrpc.NewResponse(msg.ID, BuildToolErrorResult(err))
	}

	return jsonrpc.NewResponse(msg.ID, result)
}

// BuildToolErrorResult renders a tool failure as an isError result.
// Classified failures keep their message and carry kind and data as
// structured content; anything else is reported generically.
func BuildToolErrorResult(err error) *mcp.CallToolResult {
	toolErr, ok := types.AsToolError(err)
	if !ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(toolExecutionErrorMessage)},
			IsError: true,
		}
	}

	structured := map[string]any{"kind": toolErr.Kind}
	if len(toolErr.Data) > 0 {
		structured["data"] = toolErr.Data
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(toolErr.Error())},
		StructuredContent: structured,
		IsError:           true,
	}
}

// ServerCapabilities advertises tools, plus logging when the transport can
// push notifications/message to the client.
func ServerCapabilities(logging bool) mcp.ServerCapabilities {
	caps := mcp.ServerCapabilities{
		Tools: &mcp.ToolsCapability{},
	}
	if logging {
		caps.Logging = &mcp.LoggingCapability{}
	}
	return caps
}

// BuildInitializeResult assembles the initialize result for a negotiated version.
func BuildInitializeResult(info mcp.Implementation, protocolVersion, instructions, sessionID string, logging bool) mcp.InitializeResult {
	return mcp.InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    ServerCapabilities(logging),
		ServerInfo:      info,
		Instructions:    instructions,
		SessionID:       sessionID,
	}
}

// ParseSetLevel decodes logging/setLevel params. A non-nil response is the
// error to return to the client.
func ParseSetLevel(msg jsonrpc.Request) (mcp.LogLevel, *jsonrpc.Response) {
	var params mcp.SetLevelParams
	if len(msg.Params) == 0 || json.Unmarshal(msg.Params, &params) != nil {
		return "", semanticError(msg.ID, jsonrpc.ErrInvalidParams, "Invalid params", jsonrpc.KindInvalidParams, nil)
	}
	if !params.Level.Valid() {
		return "", semanticError(msg.ID, jsonrpc.ErrInvalidParams, "Invalid params", jsonrpc.KindInvalidParams, map[string]any{
			"level": string(params.Level),
		})
	}
	return params.Level, nil
}

// NegotiateProtocolVersion echoes a supported client version and falls back
// to the newest version otherwise.
func NegotiateProtocolVersion(paramsRaw json.RawMessage) string {
	var params mcp.InitializeParams
	preferred := mcp.ProtocolVersion
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return preferred
	}

	if mcp.IsSupportedProtocolVersion(params.ProtocolVersion) {
		return params.ProtocolVersion
	}
	return preferred
}

func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	if len(paramsRaw) == 0 {
		return 0, nil
	}

	var params mcp.ListToolsParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return 0, fmt.Errorf("invalid params payload")
	}
	if strings.TrimSpace(params.Cursor) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(params.Cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor value")
	}
	if offset < 0 || offset > total {
		return 0, fmt.Errorf("invalid cursor value")
	}
	return offset, nil
}

// ParseJSONRPCFrame validates and parses one JSON-RPC message frame.
// Both stdio and streamable HTTP require a single message per frame.
func ParseJSONRPCFrame(frame []byte) ([]jsonrpc.Request, []any, bool, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, nil, false, fmt.Errorf("empty message")
	}

	if trimmed[0] == '[' {
		return nil, []any{jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil)}, false, nil
	}

	rawMsg := json.RawMessage(trimmed)
	requests := make([]jsonrpc.Request, 0, 1)
	prebuiltResponses := make([]any, 0)
	acceptedOneWay := false

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(rawMsg, &envelope); err != nil {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrParseError), "Parse error", nil))
		return requests, prebuiltResponses, false, nil
	}

	requestID, hasID, validID := parseIDFromEnvelope(envelope)
	if !validID {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}

	var msg jsonrpc.Request
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}
	// The envelope id keeps its exact digits; a plain decode would round it
	// through float64.
	msg.ID = requestID

	if msg.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		if hasResult || hasErr {
			if msg.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr) {
				prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
			} else {
				acceptedOneWay = true
			}
			return requests, prebuiltResponses, acceptedOneWay, nil
		}
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}

	if msg.JSONRPC != jsonrpc.Version {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}

	if rawParams, ok := envelope["params"]; ok && !isValidParamsValue(rawParams) {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(requestID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}

	if msg.Method == mcp.MethodInitialize && msg.IsNotification() {
		prebuiltResponses = append(prebuiltResponses, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil))
		return requests, prebuiltResponses, false, nil
	}

	requests = append(requests, msg)
	return requests, prebuiltResponses, acceptedOneWay, nil
}

func parseIDFromEnvelope(envelope map[string]json.RawMessage) (any, bool, bool) {
	rawID, exists := envelope["id"]
	if !exists {
		return nil, false, true
	}
	trimmed := bytes.TrimSpace(rawID)
	if len(trimmed) == 0 {
		return nil, true, false
	}

	var id any
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	if !isValidJSONRPCID(id) {
		return nil, true, false
	}
	return id, true, true
}

func isValidJSONRPCID(id any) bool {
	switch v := id.(type) {
	case string:
		return true
	case json.Number:
		return isJSONInteger(v.String())
	default:
		return false
	}
}

func isValidParamsValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{'
}

func isJSONInteger(value string) bool {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return false
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	if strings.HasPrefix(value, "-") {
		return false
	}
	_, err := strconv.ParseUint(value, 10, 64)
	return err == nil
}
