package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/tools/types"
)

// maxExactFloatInt is 2^53, the largest magnitude below which every integer
// has an exact float64.
const maxExactFloatInt = 1 << 53

type entry struct {
	desc     types.Descriptor
	tool     types.Tool
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// Registry maps tool names to tools and invokes them with validated arguments.
type Registry struct {
	tools map[string]*entry
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*entry),
	}
}

// Register registers a tool under its own name
func (r *Registry) Register(tool types.Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}
	return r.RegisterAs(tool.Name(), tool)
}

// RegisterAs registers a tool under name, which may differ from tool.Name().
func (r *Registry) RegisterAs(name string, tool types.Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}

	desc := types.Describe(strings.TrimSpace(name), tool)
	if err := desc.Validate(); err != nil {
		return err
	}

	schema := desc.InputSchema()
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return fmt.Errorf("resolve input schema for %q: %w", desc.Name, err)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", mcp.ErrDuplicateTool, desc.Name)
	}

	r.tools[desc.Name] = &entry{desc: desc, tool: tool, schema: schema, resolved: resolved}
	logger.Debug("Tool registered", "name", desc.Name)
	return nil
}

// RegisterFunc registers a plain function as a tool.
func (r *Registry) RegisterFunc(name, description string, params []types.Param, returns types.ReturnKind, fn types.HandlerFunc) error {
	if fn == nil {
		return errors.New("tool function cannot be nil")
	}
	return r.RegisterAs(name, types.NewFuncTool(name, description, params, returns, fn))
}

// MustRegister is Register for static tool sets; it panics on error.
func (r *Registry) MustRegister(tool types.Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// List returns all descriptors sorted by name
func (r *Registry) List() []types.Descriptor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]types.Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools returns the wire form of every registered tool, sorted by name.
func (r *Registry) Tools() []mcp.Tool {
	descs := r.List()
	out := make([]mcp.Tool, 0, len(descs))
	for _, desc := range descs {
		out = append(out, desc.Wire())
	}
	return out
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.tools)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	e, ok := r.tools[name]
	return e, ok
}

// Invoke looks name up exactly, validates and binds arguments, and runs the
// tool. Unknown names wrap mcp.ErrUnknownTool; rejected arguments are
// *mcp.ArgumentError. Any other error came from the tool itself.
func (r *Registry) Invoke(ctx context.Context, name string, arguments map[string]any) (result *mcp.CallToolResult, err error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mcp.ErrUnknownTool, name)
	}

	exact, normalized, err := normalizeArguments(name, arguments)
	if err != nil {
		return nil, err
	}

	bound, err := bindArguments(name, e.desc.Params, exact)
	if err != nil {
		return nil, err
	}

	if err := e.resolved.Validate(normalized); err != nil {
		return nil, &mcp.ArgumentError{Tool: name, Reason: err.Error()}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("Tool panicked", "name", name, "panic", recovered)
			result = nil
			err = fmt.Errorf("tool %q panicked: %v", name, recovered)
		}
	}()

	logger.Debug("Executing tool", "name", name, "args", normalized)
	out, err := e.tool.Execute(ctx, bound)
	if err != nil {
		return nil, err
	}
	return out.CallToolResult(), nil
}

// normalizeArguments round-trips through JSON so in-process callers see the
// same value shapes as wire callers. exact keeps numbers as json.Number for
// binding; plain decodes them to float64, which is what schema validation
// understands.
func normalizeArguments(tool string, arguments map[string]any) (exact, plain map[string]any, err error) {
	if len(arguments) == 0 {
		return map[string]any{}, map[string]any{}, nil
	}
	data, err := json.Marshal(arguments)
	if err != nil {
		return nil, nil, &mcp.ArgumentError{Tool: tool, Reason: fmt.Sprintf("arguments are not JSON encodable: %v", err)}
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&exact); err != nil {
		return nil, nil, &mcp.ArgumentError{Tool: tool, Reason: err.Error()}
	}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, nil, &mcp.ArgumentError{Tool: tool, Reason: err.Error()}
	}
	return exact, plain, nil
}

// bindArguments converts declared parameters to their Go types. Undeclared
// arguments are dropped.
func bindArguments(tool string, params []types.Param, arguments map[string]any) (types.Arguments, error) {
	bound := make(types.Arguments, len(params))
	for _, param := range params {
		raw, present := arguments[param.Name]
		if !present || raw == nil {
			if param.Optional {
				continue
			}
			return nil, &mcp.ArgumentError{Tool: tool, Argument: param.Name, Reason: "missing"}
		}

		value, err := bindValue(param.Type, raw)
		if err != nil {
			return nil, &mcp.ArgumentError{Tool: tool, Argument: param.Name, Reason: err.Error()}
		}
		bound[param.Name] = value
	}
	return bound, nil
}

func bindValue(kind types.ParamType, raw any) (any, error) {
	switch kind {
	case types.ParamInteger:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %s", jsonKind(raw))
		}
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, nil
		}
		// 1e3 and 7.0 are integers too, as long as float64 holds them exactly.
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %s", n)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("integer %s out of range", n)
		}
		if math.Abs(f) > maxExactFloatInt {
			return nil, fmt.Errorf("integer %s cannot be represented exactly", n)
		}
		return int64(f), nil
	case types.ParamNumber:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %s", jsonKind(raw))
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of range", n)
		}
		return f, nil
	case types.ParamString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", jsonKind(raw))
		}
		return s, nil
	case types.ParamBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %s", jsonKind(raw))
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", kind)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
