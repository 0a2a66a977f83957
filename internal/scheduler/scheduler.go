package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/config"
	"github.com/mamadbah2/dairy/internal/service/reconcile"
)

// runTimeout bounds one reconciliation run.
const runTimeout = 2 * time.Minute

// Runner is a periodic task.
type Runner interface {
	Run(ctx context.Context) (reconcile.Report, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron   *cron.Cron
	job    Runner
	cfg    config.ReconcileConfig
	logger *zap.Logger
}

// NewScheduler creates a new scheduler instance running in loc.
func NewScheduler(cfg config.ReconcileConfig, loc *time.Location, job Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	// Runs never overlap.
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:   c,
		job:    job,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the reconciliation job and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.reconcile); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a job still running")
	}
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report, err := s.job.Run(ctx)
	if err != nil {
		s.logger.Error("reconciliation run failed", zap.Error(err))
		return
	}
	s.logger.Debug("reconciliation run complete", zap.Int("scanned", report.Scanned))
}
