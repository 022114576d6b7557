package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/mcp"
)

// Version is reported by the MCP server.
var Version = "dev"

func newStatusCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which storage tiers are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				return out.tierStatus(a.Status())
			})
		},
	}
}

func newMCPCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the table tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Logs go to stderr so stdout stays clean for JSON-RPC.
			a, err := rt.Open(ctx, opts, rt.Err)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(mcp.Config{Services: mcp.ServicesFrom(a), Version: Version})
			return server.Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
}
