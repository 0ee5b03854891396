package tools

import (
	"strings"

	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/tools/calculator"
	"github.com/slighter12/calc-mcp-go/tools/data"
	"github.com/slighter12/calc-mcp-go/tools/media"
	"github.com/slighter12/calc-mcp-go/tools/types"
)

// Options configures the built-in tool set.
type Options struct {
	// Namespace prefixes every tool name as "<namespace>/<tool>".
	Namespace string
	// Image backs return_image; nil serves the embedded default.
	Image *media.ImageAsset
}

// GetAllTools returns all available tools from all categories
func GetAllTools(image *media.ImageAsset) []types.Tool {
	var all []types.Tool
	all = append(all, calculator.GetAllTools()...)
	all = append(all, data.GetAllTools()...)
	all = append(all, media.GetAllTools(image)...)
	return all
}

// QualifiedName joins a namespace and a tool name.
func QualifiedName(namespace, name string) string {
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// NewDefaultRegistry builds a registry holding every built-in tool.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	registry := NewRegistry()
	allTools := GetAllTools(opts.Image)
	for _, tool := range allTools {
		if err := registry.RegisterAs(QualifiedName(opts.Namespace, tool.Name()), tool); err != nil {
			return nil, err
		}
	}
	logger.Info("Default tools registered", "count", len(allTools), "namespace", opts.Namespace)
	return registry, nil
}
