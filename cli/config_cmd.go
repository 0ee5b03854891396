package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slighter12/calc-mcp-go/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdConfig,
		Short: "Inspect or create configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   CmdConfigInit + " [path]",
		Short: "Write a default config file",
		Long: `Write a default config file to path, to --config, or to the resolved
default location. The format follows the extension: .yaml and .yml write
YAML, anything else JSON. An existing file is left alone unless --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(root.configPath)
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				resolved, err := config.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}

			if force {
				if err := config.SaveConfig(config.NewConfig(), path); err != nil {
					return err
				}
			} else if err := config.EnsureDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "server:     http://%s:%d%s (stateless=%t)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.Endpoint, cfg.Server.Stateless)
			enabled := make([]string, 0, len(cfg.Transports))
			for _, transport := range cfg.Transports {
				if transport.Enabled {
					enabled = append(enabled, transport.Type)
				}
			}
			fmt.Fprintf(out, "transports: %s\n", strings.Join(enabled, ", "))
			fmt.Fprintf(out, "client:     %s\n", cfg.Client.Endpoint)
			fmt.Fprintf(out, "namespace:  %s\n", cfg.Tools.Namespace)
			fmt.Fprintf(out, "logging:    %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
