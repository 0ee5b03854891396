package data

import (
	"context"
	"fmt"

	"github.com/slighter12/calc-mcp-go/tools/types"
)

// EchoTool echoes its message back.
type EchoTool struct{}

func (t *EchoTool) Name() string        { return "echo" }
func (t *EchoTool) Description() string { return "Echoes back the input" }
func (t *EchoTool) Params() []types.Param {
	return []types.Param{{Name: "message", Type: types.ParamString, Description: "Message to echo"}}
}
func (t *EchoTool) Returns() types.ReturnKind { return types.ReturnText }
func (t *EchoTool) Execute(_ context.Context, args types.Arguments) (types.Result, error) {
	return types.Text(fmt.Sprintf("Echo: %s", args.String("message"))), nil
}

// ReturnListTool returns a fixed list of fruit.
type ReturnListTool struct{}

func (t *ReturnListTool) Name() string              { return "return_list" }
func (t *ReturnListTool) Description() string       { return "Returns a list of strings" }
func (t *ReturnListTool) Params() []types.Param     { return nil }
func (t *ReturnListTool) Returns() types.ReturnKind { return types.ReturnJSON }
func (t *ReturnListTool) Execute(_ context.Context, _ types.Arguments) (types.Result, error) {
	return types.JSON([]string{"apple", "banana", "cherry"})
}

// ReturnDictTool returns a fixed object.
type ReturnDictTool struct{}

func (t *ReturnDictTool) Name() string              { return "return_dict" }
func (t *ReturnDictTool) Description() string       { return "Returns a dictionary" }
func (t *ReturnDictTool) Params() []types.Param     { return nil }
func (t *ReturnDictTool) Returns() types.ReturnKind { return types.ReturnJSON }
func (t *ReturnDictTool) Execute(_ context.Context, _ types.Arguments) (types.Result, error) {
	return types.JSON(map[string]any{
		"name":  "calc-mcp-go",
		"tools": 9,
		"tags":  []string{"calculator", "demo"},
	})
}

// GetAllTools returns all data tools
func GetAllTools() []types.Tool {
	return []types.Tool{
		&EchoTool{},
		&ReturnListTool{},
		&ReturnDictTool{},
	}
}
