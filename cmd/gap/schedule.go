package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleNow bool

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "Also rebuild once at startup")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Rebuild the dataset on a cron schedule",
	Long: `Run until interrupted, rebuilding the whole dataset on GAP_CRON_SCHEDULE
(standard five-field cron syntax, default weekly on Sunday at 03:00).

A rebuild that is still running when the next one is due causes that one to
be skipped. A failed rebuild is logged and retried at the next tick.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := mustNewLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clog := cronLogger{sugar: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	job := func() {
		report, err := rebuild(ctx, cfg, logger)
		if err != nil {
			logger.Error("scheduled rebuild failed", zap.Error(err), zap.Int("exit_code", exitCodeFor(err)))
			return
		}
		logger.Info("scheduled rebuild finished", zap.String("build_id", report.BuildID))
	}

	id, err := c.AddFunc(cfg.CronSchedule, job)
	if err != nil {
		exitWithError(ExitConfigError, "invalid GAP_CRON_SCHEDULE %q: %v", cfg.CronSchedule, err)
	}

	if scheduleNow {
		job()
	}

	c.Start()
	logger.Info("scheduler started",
		zap.String("schedule", cfg.CronSchedule),
		zap.Time("next", c.Entry(id).Schedule.Next(time.Now())))

	<-ctx.Done()
	logger.Info("stopping scheduler, waiting for running rebuild")
	<-c.Stop().Done()
	return nil
}
