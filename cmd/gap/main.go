// Package main provides the gap CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/logging"
	"github.com/matsen/gap/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gap",
	Short: "Build the dblp gender analysis dataset",
	Long: `gap turns the dblp XML dump into a relational dataset of publications,
authors, venues, affiliations and countries with inferred author gender.

Every run is a full rebuild. Paths come from GAP_* environment variables
(or a .env file); tunables from the optional GAP_SETTINGS_PATH YAML file.
All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustNewLogger builds the logger described by cfg, exits on error.
func mustNewLogger(cfg *config.Config) *zap.Logger {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	return logger
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustExistingDatabase opens a database a previous run has built.
func mustExistingDatabase(cfg *config.Config) *storage.DB {
	if _, err := os.Stat(cfg.DBPath); err != nil {
		exitWithError(ExitConfigError, "database %s not found\n\nRun 'gap run' to build it.", cfg.DBPath)
	}
	return mustOpenDatabase(cfg)
}
