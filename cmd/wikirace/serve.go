package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/server"
	"github.com/neboloop/wikirace/internal/svc"
)

var quiet bool

// ServeCmd runs the HTTP server.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(cmd.Context(), quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not log requests")
	return cmd
}

// RunServe starts the service loops and the HTTP server, and blocks until
// SIGINT or SIGTERM.
func RunServe(parent context.Context, quiet bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Sync()

	svcCtx, err := svc.NewServiceContext(*ServerConfig)
	if err != nil {
		return err
	}
	defer svcCtx.Close()

	if err := svcCtx.Start(ctx); err != nil {
		return err
	}
	return server.Run(ctx, svcCtx, server.ServerOptions{Quiet: quiet})
}
