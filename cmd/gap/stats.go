package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the statistics of the last build",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustExistingDatabase(cfg)
	defer db.Close()

	stats, err := db.Statistics()
	if err != nil {
		exitWithError(ExitError, "reading statistics: %v", err)
	}

	if humanOutput {
		for _, s := range stats {
			outputHuman("%-40s %s\n", s.Name, s.Value)
		}
	} else {
		outputJSON(stats)
	}
	return nil
}
