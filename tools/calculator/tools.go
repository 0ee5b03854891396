package calculator

import (
	"context"
	"math"
	"math/bits"

	"github.com/slighter12/calc-mcp-go/tools/types"
)

var integerOperands = []types.Param{
	{Name: "a", Type: types.ParamInteger, Description: "First operand"},
	{Name: "b", Type: types.ParamInteger, Description: "Second operand"},
}

var numberOperands = []types.Param{
	{Name: "a", Type: types.ParamNumber, Description: "Dividend"},
	{Name: "b", Type: types.ParamNumber, Description: "Divisor"},
}

// AddTool adds two integers.
type AddTool struct{}

func (t *AddTool) Name() string              { return "add" }
func (t *AddTool) Description() string       { return "Add two numbers" }
func (t *AddTool) Params() []types.Param     { return integerOperands }
func (t *AddTool) Returns() types.ReturnKind { return types.ReturnInteger }
func (t *AddTool) Execute(_ context.Context, args types.Arguments) (types.Result, error) {
	a, b := args.Int("a"), args.Int("b")
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return types.Result{}, overflow(t.Name(), a, b)
	}
	return types.Integer(sum), nil
}

// SubtractTool subtracts b from a.
type SubtractTool struct{}

func (t *SubtractTool) Name() string              { return "subtract" }
func (t *SubtractTool) Description() string       { return "Subtract two numbers" }
func (t *SubtractTool) Params() []types.Param     { return integerOperands }
func (t *SubtractTool) Returns() types.ReturnKind { return types.ReturnInteger }
func (t *SubtractTool) Execute(_ context.Context, args types.Arguments) (types.Result, error) {
	a, b := args.Int("a"), args.Int("b")
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return types.Result{}, overflow(t.Name(), a, b)
	}
	return types.Integer(diff), nil
}

// MultiplyTool multiplies two integers.
type MultiplyTool struct{}

func (t *MultiplyTool) Name() string              { return "multiply" }
func (t *MultiplyTool) Description() string       { return "Multiply two numbers" }
func (t *MultiplyTool) Params() []types.Param     { return integerOperands }
func (t *MultiplyTool) Returns() types.ReturnKind { return types.ReturnInteger }
func (t *MultiplyTool) Execute(_ context.Context, args types.Arguments) (types.Result, error) {
	a, b := args.Int("a"), args.Int("b")
	product, ok := mulInt64(a, b)
	if !ok {
		return types.Result{}, overflow(t.Name(), a, b)
	}
	return types.Integer(product), nil
}

// DivideTool divides two numbers; a zero divisor is a tool failure.
type DivideTool struct{}

func (t *DivideTool) Name() string              { return "divide" }
func (t *DivideTool) Description() string       { return "Divide two numbers" }
func (t *DivideTool) Params() []types.Param     { return numberOperands }
func (t *DivideTool) Returns() types.ReturnKind { return types.ReturnNumber }
func (t *DivideTool) Execute(_ context.Context, args types.Arguments) (types.Result, error) {
	a, b := args.Float("a"), args.Float("b")
	if b == 0 {
		return types.Result{}, types.NewInvalidOperationError("division by zero", map[string]any{
			"tool": t.Name(),
			"a":    a,
			"b":    b,
		})
	}
	return types.Number(a / b), nil
}

func mulInt64(a, b int64) (int64, bool) {
	switch {
	case a == 0 || b == 0:
		return 0, true
	case a == 1:
		return b, true
	case b == 1:
		return a, true
	case a == math.MinInt64 || b == math.MinInt64:
		return 0, false
	}
	hi, lo := bits.Mul64(abs(a), abs(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	product := int64(lo)
	if (a < 0) != (b < 0) {
		product = -product
	}
	return product, true
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func overflow(tool string, a, b int64) *types.ToolError {
	return types.NewInvalidOperationError("integer overflow", map[string]any{
		"tool": tool,
		"a":    a,
		"b":    b,
	})
}

// GetAllTools returns all calculator tools
func GetAllTools() []types.Tool {
	return []types.Tool{
		&AddTool{},
		&SubtractTool{},
		&MultiplyTool{},
		&DivideTool{},
	}
}
