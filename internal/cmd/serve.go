package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/pagetext/internal/app"
	"github.com/markdave123-py/pagetext/internal/config"
	"github.com/markdave123-py/pagetext/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		port    string
		workers int
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP extraction service",
		Long:  `Serve accepts uploads over HTTP, stores them in S3 and extracts them with background workers.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadConfig()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}

			log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			application, err := app.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			log.Info("pagetext is running; DB connected and bootstrapped", "port", cfg.Port, "workers", cfg.Workers, "backend", cfg.Backend)
			return application.Run(cmd.Context(), cfg.Workers)
		},
	}
	c.Flags().StringVar(&port, "port", "", "listen port (default $PORT)")
	c.Flags().IntVar(&workers, "workers", 0, "background ingest workers (default $INGEST_WORKERS)")
	return c
}
