package types

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slighter12/calc-mcp-go/mcp"
)

// Result is the explicit output of a tool execution.
type Result struct {
	Content    []mcp.Content
	Structured map[string]any
}

func Text(s string) Result {
	return Result{Content: []mcp.Content{mcp.NewTextContent(s)}}
}

func Integer(v int64) Result {
	return Text(strconv.FormatInt(v, 10))
}

func Number(v float64) Result {
	return Text(strconv.FormatFloat(v, 'g', -1, 64))
}

// JSON renders v as a single JSON text item and mirrors it as structured
// content under "result".
func JSON(v any) (Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return Result{
		Content:    []mcp.Content{mcp.NewTextContent(string(data))},
		Structured: map[string]any{"result": v},
	}, nil
}

func Image(data []byte, mimeType string) Result {
	return Result{Content: []mcp.Content{mcp.NewImageContent(data, mimeType)}}
}

func Audio(data []byte, mimeType string) Result {
	return Result{Content: []mcp.Content{mcp.NewAudioContent(data, mimeType)}}
}

// CallToolResult converts the result to its wire form.
func (r Result) CallToolResult() *mcp.CallToolResult {
	content := r.Content
	if content == nil {
		content = []mcp.Content{}
	}
	return &mcp.CallToolResult{Content: content, StructuredContent: r.Structured}
}
