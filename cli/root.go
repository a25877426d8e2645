// Package cli is the homehub command line: the hub server plus maintenance
// commands that work directly against the automation database.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"homehub/app"
	"homehub/config"
	"homehub/logger"
)

var (
	userID  string
	verbose bool

	// loadConfig is replaced in tests
	loadConfig = config.LoadFromEnv
)

var rootCmd = &cobra.Command{
	Use:   "homehub",
	Short: "Home automation hub that learns your routines",
	Long: `homehub - home automation hub that learns your routines
  - records device actions and detects recurring patterns
  - suggests automations and runs the ones you accept

Without a subcommand the hub server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "User whose data is shown or changed")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr while running maintenance commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(automationsCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(suggestionsCmd)
	rootCmd.AddCommand(eventsCmd)
}

// openApp initializes the hub without serving. The returned close func
// releases its connections.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg := loadConfig()
	log := logger.Nop()
	if verbose {
		l, err := logger.New(cfg.LogMode)
		if err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
		log = l
	}

	a := app.New(cfg, log)
	if err := a.Init(ctx); err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		log.Sync()
	}, nil
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}
