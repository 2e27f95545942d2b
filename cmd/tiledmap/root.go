package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/logger"
)

var (
	// Set during PersistentPreRunE.
	cfg *config.Config
	log logger.Logger

	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "tiledmap",
	Short: "Dataset map tiles on PostGIS and Windshaft",
	Long: `tiledmap - dataset map tiles on PostGIS and Windshaft

tiledmap builds the SQL a Windshaft renderer runs to draw plot, gridded and
heatmap tiles of a datastore table, fetches and prefetches those tiles, and
maintains the geometry columns they are drawn from.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.LoadWith(config.Options{File: resolveString(cfgFile, os.Getenv(config.EnvConfigFile))})
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		level := cfg.Log.Level
		switch {
		case quiet:
			level = "error"
		case verbose > 1:
			level = "trace"
		case verbose == 1:
			level = "debug"
		}
		log = logger.New(logger.Options{Level: level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

const (
	groupRender = "render"
	groupData   = "data"
	groupUtil   = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $TILEDMAP_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupRender, Title: "Rendering:"},
		&cobra.Group{ID: groupData, Title: "Datastore:"},
		&cobra.Group{ID: groupUtil, Title: "Utility:"},
	)

	sqlCmd.GroupID = groupRender
	tileCmd.GroupID = groupRender
	seedCmd.GroupID = groupRender
	serveCmd.GroupID = groupRender
	rootCmd.AddCommand(sqlCmd, tileCmd, seedCmd, serveCmd)

	geomCmd.GroupID = groupData
	infoCmd.GroupID = groupData
	rootCmd.AddCommand(geomCmd, infoCmd)

	configCmd.GroupID = groupUtil
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration problems to 2 and everything else to 1.
func exitCode(err error) int {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

// resolveString returns the first non-empty value.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
