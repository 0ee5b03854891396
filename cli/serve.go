package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slighter12/calc-mcp-go/config"
	"github.com/slighter12/calc-mcp-go/logger"
	"github.com/slighter12/calc-mcp-go/mcp"
	"github.com/slighter12/calc-mcp-go/tools"
	"github.com/slighter12/calc-mcp-go/tools/media"
	mcphttp "github.com/slighter12/calc-mcp-go/transport/http"
	"github.com/slighter12/calc-mcp-go/transport/stdio"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var useStdio bool

	cmd := &cobra.Command{
		Use:   CmdServe,
		Short: "Start the MCP tool server",
		Long: `Start the MCP tool server on the configured streamable HTTP endpoint.

With --stdio, or when only the stdio transport is enabled, the server speaks
newline-delimited JSON-RPC on stdin/stdout instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stdioMode := useStdio || (cfg.TransportEnabled(config.TransportStdio) && !cfg.TransportEnabled(config.TransportStreamableHTTP))
			return runServe(ctx, cmd, cfg, stdioMode)
		},
	}
	cmd.Flags().BoolVar(&useStdio, FlagStdio, false, "Serve over stdin/stdout instead of HTTP")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, stdioMode bool) error {
	asset := media.NewImageAsset(cfg.Tools.AssetRoot, cfg.Tools.ImagePath)
	registry, err := tools.NewDefaultRegistry(tools.Options{
		Namespace: cfg.Tools.Namespace,
		Image:     asset,
	})
	if err != nil {
		return err
	}
	info := mcp.Implementation{Name: cfg.Name, Version: cfg.Version}

	if cfg.Tools.WatchAssets {
		stopWatch, err := asset.StartWatch(ctx)
		if err != nil {
			logger.Warn("Image asset watch disabled", "path", asset.Path(), "error", err)
		} else {
			defer stopWatch()
		}
	}

	if stdioMode {
		logger.Info("Starting MCP server in stdio mode", "tools", registry.Len())
		server := stdio.NewStdioServer(registry, info, cfg.Description)
		err := server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	server := mcphttp.NewServer(cfg, registry, info)
	asset.OnChange(func() {
		server.BroadcastLog(mcp.LogInfo, map[string]any{
			"event": "asset_reloaded",
			"path":  asset.Path(),
		})
	})
	logger.Info("Starting MCP server in Streamable HTTP mode", "address", server.Address(), "tools", registry.Len())
	return server.Start(ctx)
}
