package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/matsen/gap/internal/config"
	"github.com/matsen/gap/internal/dblp"
	"github.com/matsen/gap/internal/gender"
	"github.com/matsen/gap/internal/jsonl"
	"github.com/matsen/gap/internal/refdata"
	"github.com/matsen/gap/internal/storage"
	"go.uber.org/zap"
)

// DirPublisher uploads an export directory.
type DirPublisher interface {
	PublishDir(ctx context.Context, dir string) (int, error)
}

// Run is the state shared by the stages of one rebuild. Reference data is
// loaded once by its stage and handed to later stages through Run.
type Run struct {
	Config  *config.Config
	DB      *storage.DB
	Logger  *zap.Logger
	Metrics *Metrics
	BuildID string

	// Publisher overrides the S3 publisher built from the configuration.
	Publisher DirPublisher
	// Now returns the build time recorded in the statistics.
	Now func() time.Time

	refdata     *refdata.Data
	genderTable *gender.Table
}

// NewRun prepares a rebuild with a fresh build ID.
func NewRun(cfg *config.Config, db *storage.DB, logger *zap.Logger) *Run {
	return &Run{
		Config:  cfg,
		DB:      db,
		Logger:  logger,
		Metrics: NewMetrics(),
		BuildID: uuid.NewString(),
		Now:     time.Now,
	}
}

// StageReport summarises one executed stage.
type StageReport struct {
	Name     string  `json:"name"`
	Rows     int64   `json:"rows"`
	Duration float64 `json:"duration_seconds"`
}

// Report summarises a run.
type Report struct {
	BuildID string        `json:"build_id"`
	Stages  []StageReport `json:"stages"`
}

// Execute orders stages and runs them one after the other. The first
// failing stage aborts the run; metrics are written either way.
func (r *Run) Execute(ctx context.Context, stages []Stage) (*Report, error) {
	ordered, err := Order(stages)
	if err != nil {
		return nil, err
	}

	report := &Report{BuildID: r.BuildID}
	r.Logger.Info("run started", zap.String("build_id", r.BuildID), zap.Int("stages", len(ordered)))
	start := time.Now()

	for _, s := range ordered {
		sr, err := r.RunStage(ctx, s)
		if err != nil {
			return report, errors.Join(err, r.writeMetrics())
		}
		report.Stages = append(report.Stages, sr)
	}

	r.Logger.Info("run finished",
		zap.String("build_id", r.BuildID),
		zap.Duration("duration", time.Since(start)))
	return report, r.writeMetrics()
}

// RunStage runs a single stage without checking its dependencies.
func (r *Run) RunStage(ctx context.Context, s Stage) (StageReport, error) {
	if err := ctx.Err(); err != nil {
		return StageReport{}, err
	}
	r.Logger.Info("stage started", zap.String("stage", s.Name))
	start := time.Now()

	rows, err := s.Run(ctx, r)
	if err != nil {
		r.Logger.Error("stage failed", zap.String("stage", s.Name), zap.Error(err))
		return StageReport{}, fmt.Errorf("stage %s: %w", s.Name, err)
	}

	elapsed := time.Since(start)
	r.Metrics.observeStage(s.Name, elapsed.Seconds(), rows)
	r.Logger.Info("stage finished",
		zap.String("stage", s.Name),
		zap.Int64("rows", rows),
		zap.Duration("duration", elapsed))
	return StageReport{Name: s.Name, Rows: rows, Duration: elapsed.Seconds()}, nil
}

func (r *Run) writeMetrics() error {
	if r.Config.MetricsPath == "" {
		return nil
	}
	if err := r.Metrics.WriteTextfile(r.Config.MetricsPath); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// referenceData returns the country tables, loading them if no earlier
// stage did.
func (r *Run) referenceData() (*refdata.Data, error) {
	if r.refdata == nil {
		data, err := refdata.Load(r.Config.ReferenceDir)
		if err != nil {
			return nil, err
		}
		r.refdata = data
	}
	return r.refdata, nil
}

// genderReference returns the deduplicated gender table, loading it if no
// earlier stage did.
func (r *Run) genderReference(ctx context.Context) (*gender.Table, error) {
	if r.genderTable == nil {
		table, err := gender.LoadTable(ctx, r.Config.GenderPath, r.Logger)
		if err != nil {
			return nil, err
		}
		r.genderTable = table
	}
	return r.genderTable, nil
}

// eachRecord calls fn for every extracted record of tag. Tags the settings
// do not declare have no record file and are skipped.
func (r *Run) eachRecord(tag string, fn func(dblp.Record) error) error {
	if _, ok := r.Config.Settings.EntityFields()[tag]; !ok {
		r.Logger.Debug("entity not declared, skipping", zap.String("tag", tag))
		return nil
	}
	if err := jsonl.Each(r.Config.RecordsPath(tag), fn); err != nil {
		return fmt.Errorf("reading %s records: %w", tag, err)
	}
	return nil
}
