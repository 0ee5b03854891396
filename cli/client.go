package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/slighter12/calc-mcp-go/client"
	"github.com/slighter12/calc-mcp-go/config"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/tools"
)

type clientFlags struct {
	endpoint  string
	namespace string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.endpoint, FlagEndpoint, "", "MCP endpoint URL (defaults to client.endpoint)")
	cmd.Flags().StringVar(&f.namespace, FlagNamespace, "", "Tool namespace (defaults to tools.namespace)")
}

func (f *clientFlags) resolve(cfg *config.Config) (endpoint, namespace string) {
	endpoint = cfg.Client.Endpoint
	if f.endpoint != "" {
		endpoint = f.endpoint
	}
	namespace = cfg.Tools.Namespace
	if f.namespace != "" {
		namespace = f.namespace
	}
	return endpoint, namespace
}

func clientOptions(cfg *config.Config) []client.Option {
	return []client.Option{
		client.WithClientInfo(mcp.Implementation{Name: cfg.Client.Name, Version: cfg.Client.Version}),
		client.WithTimeout(time.Duration(cfg.Client.TimeoutSeconds) * time.Second),
		client.WithHeaders(cfg.ClientHeaders()),
	}
}

func newDemoCmd(root *rootOptions) *cobra.Command {
	flags := &clientFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   CmdDemo,
		Short: "Run the example client session against a server",
		Long: `Connect to the server, initialize, ping, list the tools, then call
multiply, subtract, return_list and return_image. The image is written to
--output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			endpoint, namespace := flags.resolve(cfg)
			return client.WithSession(cmd.Context(), endpoint, func(ctx context.Context, c *client.Client) error {
				return runDemo(ctx, c, cmd.OutOrStdout(), namespace, output)
			}, clientOptions(cfg)...)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&output, FlagOutput, "output_image.png", "Where to write the return_image result")
	return cmd
}

func runDemo(ctx context.Context, c *client.Client, out io.Writer, namespace, output string) error {
	if info, ok := c.ServerInfo(); ok {
		fmt.Fprintln(out, "Server Info:")
		fmt.Fprintf(out, "  %s %s (protocol %s)\n", info.ServerInfo.Name, info.ServerInfo.Version, info.ProtocolVersion)
	}

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Fprintln(out, "Ping successful!")

	list, err := c.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	printTools(out, list)

	for _, step := range []struct {
		tool string
		args map[string]any
	}{
		{tool: "multiply", args: map[string]any{"a": 7, "b": 10}},
		{tool: "subtract", args: map[string]any{"a": 25, "b": 10}},
		{tool: "return_list"},
	} {
		name := tools.QualifiedName(namespace, step.tool)
		result, err := c.CallTool(ctx, name, step.args)
		if err != nil {
			return fmt.Errorf("call %s: %w", name, err)
		}
		text, _ := result.Text()
		fmt.Fprintf(out, "%s: %s\n", name, text)
	}

	name := tools.QualifiedName(namespace, "return_image")
	result, err := c.CallTool(ctx, name, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	written, err := writeBinaryContent(result, mcp.ContentImage, output)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: wrote %d bytes to %s\n", name, written, output)
	return nil
}

func newCallCmd(root *rootOptions) *cobra.Command {
	flags := &clientFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   CmdCall + " <tool> [key=value...]",
		Short: "Call one tool and print its result",
		Long: `Call one tool by its full name. Each value is decoded as JSON when it
parses and passed as a string otherwise, so a=7 sends a number and
message=hello sends a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments, err := parseArguments(args[1:])
			if err != nil {
				return err
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			endpoint, _ := flags.resolve(cfg)
			return client.WithSession(cmd.Context(), endpoint, func(ctx context.Context, c *client.Client) error {
				result, err := c.CallTool(ctx, args[0], arguments)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), result, output)
			}, clientOptions(cfg)...)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&output, FlagOutput, "", "Write the first binary content item to this file")
	return cmd
}

func newToolsCmd(root *rootOptions) *cobra.Command {
	flags := &clientFlags{}

	cmd := &cobra.Command{
		Use:   CmdTools,
		Short: "List the tools a server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			endpoint, _ := flags.resolve(cfg)
			return client.WithSession(cmd.Context(), endpoint, func(ctx context.Context, c *client.Client) error {
				list, err := c.ListTools(ctx)
				if err != nil {
					return err
				}
				printTools(cmd.OutOrStdout(), list)
				return nil
			}, clientOptions(cfg)...)
		},
	}
	flags.register(cmd)
	return cmd
}

// parseArguments turns key=value pairs into tool arguments.
func parseArguments(pairs []string) (map[string]any, error) {
	arguments := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		arguments[key] = value
	}
	return arguments, nil
}

func printTools(out io.Writer, list []mcp.Tool) {
	fmt.Fprintf(out, "Tools (%d):\n", len(list))
	for _, tool := range list {
		params := make([]string, 0)
		if tool.InputSchema != nil {
			for name, prop := range tool.InputSchema.Properties {
				params = append(params, name+":"+prop.Type)
			}
		}
		sort.Strings(params)
		fmt.Fprintf(out, "  %-28s %s [%s]\n", tool.Name, tool.Description, strings.Join(params, ", "))
	}
}

func printResult(out io.Writer, result *mcp.CallToolResult, output string) error {
	for _, item := range result.Content {
		switch item.Type {
		case mcp.ContentText:
			fmt.Fprintln(out, item.Text)
		default:
			if output == "" {
				fmt.Fprintf(out, "<%s %s, %d base64 chars>\n", item.Type, item.MIMEType, len(item.Data))
				continue
			}
			written, err := writeBinaryContent(result, item.Type, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %d bytes to %s\n", written, output)
			output = ""
		}
	}
	return nil
}

func writeBinaryContent(result *mcp.CallToolResult, kind mcp.ContentType, path string) (int, error) {
	item, ok := result.First(kind)
	if !ok {
		return 0, fmt.Errorf("result has no %s content", kind)
	}
	raw, err := item.Bytes()
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(raw), nil
}
