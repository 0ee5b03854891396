package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/slighter12/calc-mcp-go/mcp"
)

func TestDescriptorInputSchema(t *testing.T) {
	desc := Descriptor{
		Name: "divide",
		Params: []Param{
			{Name: "a", Type: ParamNumber, Description: "Dividend"},
			{Name: "b", Type: ParamNumber, Description: "Divisor"},
			{Name: "round", Type: ParamBoolean, Optional: true},
		},
	}

	schema := desc.InputSchema()
	if schema.Type != "object" {
		t.Fatalf("expected object schema, got %q", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(schema.Properties))
	}
	if schema.Properties["a"].Type != "number" || schema.Properties["a"].Description != "Dividend" {
		t.Fatalf("unexpected property a: %+v", schema.Properties["a"])
	}
	if len(schema.Required) != 2 || schema.Required[0] != "a" || schema.Required[1] != "b" {
		t.Fatalf("unexpected required list: %v", schema.Required)
	}
}

func TestDescriptorValidate(t *testing.T) {
	cases := map[string]Descriptor{
		"empty name":     {Name: " "},
		"empty param":    {Name: "x", Params: []Param{{Type: ParamString}}},
		"untyped param":  {Name: "x", Params: []Param{{Name: "a"}}},
		"duplicate name": {Name: "x", Params: []Param{{Name: "a", Type: ParamString}, {Name: "a", Type: ParamInteger}}},
	}
	for name, desc := range cases {
		if err := desc.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	ok := Descriptor{Name: "x", Params: []Param{{Name: "a", Type: ParamInteger}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid descriptor, got %v", err)
	}
}

func TestResultConstructors(t *testing.T) {
	if text, _ := Integer(-70).CallToolResult().Text(); text != "-70" {
		t.Fatalf("unexpected integer text: %q", text)
	}
	if text, _ := Number(2.5).CallToolResult().Text(); text != "2.5" {
		t.Fatalf("unexpected number text: %q", text)
	}

	list, err := JSON([]string{"apple", "banana", "cherry"})
	if err != nil {
		t.Fatalf("json result: %v", err)
	}
	wire := list.CallToolResult()
	if text, _ := wire.Text(); text != `["apple","banana","cherry"]` {
		t.Fatalf("unexpected json text: %q", text)
	}
	if _, ok := wire.StructuredContent["result"]; !ok {
		t.Fatalf("expected structured result, got %v", wire.StructuredContent)
	}

	if _, err := JSON(make(chan int)); err == nil {
		t.Fatal("expected unmarshalable value to fail")
	}

	image := Image([]byte("abc"), "image/png").CallToolResult()
	if item, ok := image.First(mcp.ContentImage); !ok || item.MIMEType != "image/png" {
		t.Fatalf("expected image item, got %+v", image.Content)
	}

	if empty := (Result{}).CallToolResult(); empty.Content == nil {
		t.Fatal("expected empty content slice, got nil")
	}
}

func TestArgumentsAccessors(t *testing.T) {
	args := Arguments{"a": int64(7), "x": 1.5, "s": "hi", "ok": true}
	if args.Int("a") != 7 || args.Float("a") != 7 || args.Float("x") != 1.5 {
		t.Fatalf("unexpected numeric accessors: %v", args)
	}
	if args.String("s") != "hi" || !args.Bool("ok") {
		t.Fatalf("unexpected string/bool accessors: %v", args)
	}
	if args.Has("missing") || args.Int("s") != 0 {
		t.Fatal("expected zero values for missing or mistyped arguments")
	}
}

func TestFuncToolAndToolError(t *testing.T) {
	tool := NewFuncTool("fail", "always fails", nil, ReturnText, func(context.Context, Arguments) (Result, error) {
		return Result{}, fmt.Errorf("wrapped: %w", NewInvalidOperationError("nope", map[string]any{"why": "test"}))
	})

	_, err := tool.Execute(context.Background(), nil)
	toolErr, ok := AsToolError(err)
	if !ok {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.Kind != KindInvalidOperation || toolErr.Error() != "nope" {
		t.Fatalf("unexpected tool error: %+v", toolErr)
	}

	if _, ok := AsToolError(errors.New("plain")); ok {
		t.Fatal("plain errors are not tool errors")
	}

	_, err = NewFuncTool("empty", "", nil, ReturnText, nil).Execute(context.Background(), nil)
	if toolErr, ok := AsToolError(err); !ok || toolErr.Kind != KindNotAvailable {
		t.Fatalf("expected not_available error, got %v", err)
	}
}
