package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"homehub/app"
	"homehub/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub: HTTP API, scheduler, event stream and device gateway",
	Long: `Run the hub until interrupted.

Configuration is read from the environment and an optional .env file
(API_PORT, DB_DRIVER, DB_PATH, DEVICE_BACKEND, REDIS_ENABLED, ...).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	return app.New(cfg, log).Start()
}
