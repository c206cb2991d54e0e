package main

import (
	"github.com/spf13/cobra"

	"violin-coach-service/internal/app"
	"violin-coach-service/internal/config"
	apihttp "violin-coach-service/internal/http"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the practice analysis service",
		Long: `Start the HTTP API and the observability server, using the
VIOLIN_COACH_* environment variables for configuration. Runs until
SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			application, err := app.New(cfg)
			if err != nil {
				return err
			}

			return application.Run(cmd.Context(), apihttp.NewRouter(application))
		},
	}
}
