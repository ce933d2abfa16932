package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zetareason/reasonbench/internal/config"
	"github.com/zetareason/reasonbench/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var (
		host    string
		port    int
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation API server",
		Long: `Start an HTTP server exposing the evaluation engine.

The API accepts evaluation and comparison requests, streams run progress
over websockets, and serves stored experiments. The server shuts down
gracefully on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			srv, err := webserver.New(webserver.Config{
				Host:              host,
				Port:              port,
				ExperimentsDir:    cfg.Paths.Experiments,
				AllowedOrigins:    origins,
				ProgressRetention: time.Duration(cfg.Progress.RetentionMinutes) * time.Minute,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	cmd.Flags().StringArrayVar(&origins, "allow-origin", nil, "CORS origin to allow (can be repeated)")

	return cmd
}
