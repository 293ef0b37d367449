package main

import (
	"context"

	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/pipeline"
	"github.com/matsen/gap/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rebuild the whole dataset",
	Long: `Rebuild the database from the dblp dump and the reference files.

All tables are dropped and recreated, then exported as CSV together with the
filter lists and diagnostics. If GAP_S3_BUCKET is set the export directory is
published afterwards.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := mustNewLogger(cfg)
	defer logger.Sync()

	report, err := rebuild(cmd.Context(), cfg, logger)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		printReportHuman(report)
	} else {
		outputJSON(report)
	}
	return nil
}

// rebuild runs every stage against a freshly opened database.
func rebuild(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Report, error) {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return pipeline.NewRun(cfg, db, logger).Execute(ctx, pipeline.Stages())
}
