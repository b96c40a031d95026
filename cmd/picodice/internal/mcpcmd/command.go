package mcpcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/sipeed/picodice/cmd/picodice/internal"
	"github.com/sipeed/picodice/pkg/mcp"
)

func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the dice tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := internal.SetupLogging(cfg, debug); err != nil {
				return err
			}

			app := internal.NewApp(cfg)
			server := mcp.NewServer(app.Roller, mcp.Options{
				Version: internal.GetVersion(),
				Metrics: app.Metrics,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return mcp.Run(ctx, server, &sdkmcp.StdioTransport{})
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
