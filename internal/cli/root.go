package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hoopscan/internal/config"
	"hoopscan/internal/logging"
	"hoopscan/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, persistence unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "hoopscan",
		Short: "Hoop pattern matcher for candle series",
		Long: `Hoopscan detects chart patterns in historical price series using
sequential, tolerance-windowed price checkpoints ("hoops").

A pattern is an ordered chain of hoops. Each hoop defines a price band as
percentage offsets from the active anchor and a bar window around an
expected distance; the matcher walks the chain, taking the first qualifying
bar at each hoop and advancing the anchor per the hoop's anchor mode.

Use 'hoopscan pattern create' to define patterns, 'hoopscan data import' to
load candles, and 'hoopscan scan' to search for matches.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/hoopscan)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addPatternCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addScanCommands(rootCmd, app)

	return rootCmd
}
