// Package reconcile finishes settlements whose commit was interrupted while
// the store ran without transactions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/service/settlement"
)

// DefaultBatch caps how many records one run replays per flow.
const DefaultBatch = 100

// Replayer is the part of a settlement service the job drives.
type Replayer interface {
	Flow() models.Flow
	Pending(ctx context.Context, cutoff time.Time, limit int) ([]models.SettlementRecord, error)
	Replay(ctx context.Context, record models.SettlementRecord) (settlement.ReplayResult, error)
}

// Report counts what one run did.
type Report struct {
	Scanned   int
	Committed int
	Abandoned int
	Skipped   int
	Failed    int
}

// Job replays pending settlement records older than the grace period. The
// grace period keeps it away from settlements still being committed.
type Job struct {
	replayers []Replayer
	grace     time.Duration
	batch     int
	logger    *zap.Logger
	now       func() time.Time
}

// NewJob creates a reconciliation job over the given flows.
func NewJob(grace time.Duration, logger *zap.Logger, replayers ...Replayer) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		replayers: replayers,
		grace:     grace,
		batch:     DefaultBatch,
		logger:    logger,
		now:       time.Now,
	}
}

// Run replays one batch per flow. A record that fails to replay is logged and
// left pending for the next run; the joined errors are returned.
func (j *Job) Run(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)
	cutoff := j.now().Add(-j.grace)

	for _, r := range j.replayers {
		records, err := r.Pending(ctx, cutoff, j.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("list pending %s settlements: %w", r.Flow(), err))
			continue
		}

		for _, record := range records {
			if ctx.Err() != nil {
				return report, errors.Join(append(errs, ctx.Err())...)
			}
			report.Scanned++

			result, err := r.Replay(ctx, record)
			if err != nil {
				report.Failed++
				j.logger.Error("replay failed",
					zap.String("flow", r.Flow().String()),
					zap.String("settlement", record.ID),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("replay %s settlement %s: %w", r.Flow(), record.ID, err))
				continue
			}

			switch result {
			case settlement.ReplayCommitted:
				report.Committed++
			case settlement.ReplayAbandoned:
				report.Abandoned++
			default:
				report.Skipped++
			}
		}
	}

	if report.Scanned > 0 {
		j.logger.Info("reconciliation run finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("committed", report.Committed),
			zap.Int("abandoned", report.Abandoned),
			zap.Int("failed", report.Failed))
	}
	return report, errors.Join(errs...)
}
