package main

import (
	"context"

	"github.com/matsen/gap/internal/export"
	"github.com/matsen/gap/internal/pipeline"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-export the dataset as CSV",
	Long: `Write every table and filter list of the last build to GAP_EXPORT_DIR
without rebuilding. If GAP_S3_BUCKET is set the export directory is published
afterwards.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// ExportResult is the response for the export command.
type ExportResult struct {
	Status    string `json:"status"`
	Rows      int64  `json:"rows"`
	ExportDir string `json:"export_dir"`
	Published bool   `json:"published"`
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := mustNewLogger(cfg)
	defer logger.Sync()

	db := mustExistingDatabase(cfg)
	defer db.Close()

	lists, err := db.FilterLists()
	if err != nil {
		exitWithError(ExitError, "reading filter lists: %v", err)
	}
	if err := export.Filters(lists, cfg.FiltersPath()); err != nil {
		exitWithError(ExitError, "writing filter lists: %v", err)
	}

	stage, _ := pipeline.Find(pipeline.Stages(), pipeline.StageExport)
	sr, err := pipeline.NewRun(cfg, db, logger).RunStage(context.Background(), stage)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	if humanOutput {
		outputHuman("Exported %d rows to %s\n", sr.Rows, cfg.ExportDir)
		if cfg.S3.Enabled() {
			outputHuman("Published to s3://%s/%s\n", cfg.S3.Bucket, cfg.S3.Prefix)
		}
	} else {
		outputJSON(ExportResult{
			Status:    "exported",
			Rows:      sr.Rows,
			ExportDir: cfg.ExportDir,
			Published: cfg.S3.Enabled(),
		})
	}
	return nil
}
