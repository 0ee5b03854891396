package types

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/slighter12/calc-mcp-go/mcp"
)

// ParamType is the primitive type of a tool parameter.
type ParamType string

const (
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamString  ParamType = "string"
	ParamBoolean ParamType = "boolean"
)

func (p ParamType) valid() bool {
	switch p {
	case ParamInteger, ParamNumber, ParamString, ParamBoolean:
		return true
	default:
		return false
	}
}

// ReturnKind describes what a tool puts in its result.
type ReturnKind string

const (
	ReturnText    ReturnKind = "text"
	ReturnInteger ReturnKind = "integer"
	ReturnNumber  ReturnKind = "number"
	ReturnJSON    ReturnKind = "json"
	ReturnImage   ReturnKind = "image"
	ReturnAudio   ReturnKind = "audio"
)

// Param declares one named tool parameter. Parameters are required unless
// Optional is set.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Optional    bool
}

// Tool interface defines the contract for all tools
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Returns() ReturnKind
	Execute(ctx context.Context, args Arguments) (Result, error)
}

// Descriptor is the registered shape of a tool.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Returns     ReturnKind
}

// Describe builds the descriptor of tool under the given name.
func Describe(name string, tool Tool) Descriptor {
	params := tool.Params()
	return Descriptor{
		Name:        name,
		Description: tool.Description(),
		Params:      append([]Param(nil), params...),
		Returns:     tool.Returns(),
	}
}

// Validate rejects empty names and duplicate or untyped parameters.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("tool name cannot be empty")
	}
	seen := make(map[string]struct{}, len(d.Params))
	for _, param := range d.Params {
		if strings.TrimSpace(param.Name) == "" {
			return fmt.Errorf("tool %q: parameter name cannot be empty", d.Name)
		}
		if !param.Type.valid() {
			return fmt.Errorf("tool %q: parameter %q has unsupported type %q", d.Name, param.Name, param.Type)
		}
		if _, dup := seen[param.Name]; dup {
			return fmt.Errorf("tool %q: duplicate parameter %q", d.Name, param.Name)
		}
		seen[param.Name] = struct{}{}
	}
	return nil
}

// InputSchema renders the parameters as a JSON Schema object.
func (d Descriptor) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Params)),
		Required:   []string{},
	}
	for _, param := range d.Params {
		schema.Properties[param.Name] = &jsonschema.Schema{
			Type:        string(param.Type),
			Description: param.Description,
		}
		if !param.Optional {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

// Wire returns the tools/list form of the descriptor.
func (d Descriptor) Wire() mcp.Tool {
	return mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema(),
	}
}

// HandlerFunc executes a tool built with NewFuncTool.
type HandlerFunc func(ctx context.Context, args Arguments) (Result, error)

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	name        string
	description string
	params      []Param
	returns     ReturnKind
	fn          HandlerFunc
}

func NewFuncTool(name, description string, params []Param, returns ReturnKind, fn HandlerFunc) *FuncTool {
	return &FuncTool{name: name, description: description, params: params, returns: returns, fn: fn}
}

func (t *FuncTool) Name() string        { return t.name }
func (t *FuncTool) Description() string { return t.description }
func (t *FuncTool) Params() []Param     { return t.params }
func (t *FuncTool) Returns() ReturnKind { return t.returns }
func (t *FuncTool) Execute(ctx context.Context, args Arguments) (Result, error) {
	if t.fn == nil {
		return Result{}, NewToolError(KindNotAvailable, "tool has no handler", map[string]any{"tool": t.name})
	}
	return t.fn(ctx, args)
}
