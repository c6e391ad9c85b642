package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prompt assistant HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var srv *server.Server
		if a, err := newAssistant(); err != nil {
			logging.Component("server").WithError(err).Warn("prompt endpoints will answer 503")
			srv = server.New(cfg, nil, server.WithAssistantError(err))
		} else {
			srv = server.New(cfg, a)
		}
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().String("host", "", "host to bind to")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")

	bindFlag(serveCmd, "host", "server.host")
	bindFlag(serveCmd, "port", "server.port")

	rootCmd.AddCommand(serveCmd)
}
