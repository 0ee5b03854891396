// Package cli wires configuration, the tool registry and the transports into
// the calc-mcp command.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slighter12/calc-mcp-go/config"
	"github.com/slighter12/calc-mcp-go/logger"
)

// CLI Constants
const (
	CmdServe      = "serve"
	CmdDemo       = "demo"
	CmdCall       = "call"
	CmdTools      = "tools"
	CmdConfig     = "config"
	CmdConfigInit = "init"
	FlagConfig    = "config"
	FlagLogLevel  = "log-level"
	FlagStdio     = "stdio"
	FlagEndpoint  = "endpoint"
	FlagOutput    = "output"
	FlagNamespace = "namespace"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the calc-mcp command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "calc-mcp",
		Short: "Calculator MCP tool server and client over streamable HTTP",
		Long: `calc-mcp serves a small set of calculator, data and media tools over the
Model Context Protocol, and ships a client to call them.

QUICK START:
  calc-mcp serve                          # Serve http://127.0.0.1:8080/mcp
  calc-mcp demo                           # Run the example client session
  calc-mcp call calculator/multiply a=7 b=10`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, FlagConfig, "", "Path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, FlagLogLevel, "", "Override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newDemoCmd(opts),
		newCallCmd(opts),
		newToolsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// load resolves and loads configuration, then initializes the logger from it.
func (o *rootOptions) load() (*config.Config, error) {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		resolved, err := config.ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	}
	if cfg.Server.Debug {
		cfg.Logging.Level = "debug"
	}

	if err := logger.Init(logger.GetLevelFromString(cfg.Logging.Level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Debug("Configuration loaded", "path", path, "endpoint", cfg.Server.Endpoint, "namespace", cfg.Tools.Namespace)
	return cfg, nil
}
