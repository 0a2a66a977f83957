package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/repository"
)

// ReplayResult says what Replay did with a pending settlement.
type ReplayResult string

const (
	// ReplaySkipped means the record was no longer pending.
	ReplaySkipped ReplayResult = "skipped"
	// ReplayCommitted means the remaining effects were applied.
	ReplayCommitted ReplayResult = "committed"
	// ReplayAbandoned means a newer settlement exists; the record was marked
	// failed for manual review.
	ReplayAbandoned ReplayResult = "abandoned"
)

// Pending lists the records of every owner still pending and created before
// cutoff.
func (s *Service) Pending(ctx context.Context, cutoff time.Time, limit int) ([]models.SettlementRecord, error) {
	return s.store.FindSettlements(ctx, models.SettlementQuery{
		Flow:          s.policy.Flow,
		Status:        models.SettlementPending,
		CreatedBefore: &cutoff,
		Limit:         limit,
	})
}

// Replay finishes a settlement whose commit was interrupted. Every step is
// idempotent: already paid items and settled advances are left alone and the
// balance is only overwritten when it does not yet carry this record.
func (s *Service) Replay(ctx context.Context, pending models.SettlementRecord) (ReplayResult, error) {
	release, err := s.locker.Acquire(ctx, lock.CounterpartyKey(s.policy.Flow, pending.OwnerID, pending.CounterpartyID))
	if err != nil {
		return "", err
	}
	defer release()
	return s.replay(ctx, pending)
}

// catchUp replays every settlement of the counterparty still pending, so a
// new write starts from their effects instead of superseding them. The
// caller holds the counterparty lock.
func (s *Service) catchUp(ctx context.Context, ownerID, counterpartyID string) error {
	pending, err := s.store.FindSettlements(ctx, models.SettlementQuery{
		Flow:           s.policy.Flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Status:         models.SettlementPending,
	})
	if err != nil {
		return wrapPersistence(err)
	}
	for _, record := range pending {
		if _, err := s.replay(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// replay is Replay without the lock.
func (s *Service) replay(ctx context.Context, pending models.SettlementRecord) (ReplayResult, error) {
	result := ReplaySkipped
	var (
		record *models.SettlementRecord
		acct   account
		err    error
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		record, err = tx.GetSettlement(ctx, s.policy.Flow, pending.OwnerID, pending.ID)
		if err != nil {
			return err
		}
		if record.Status != models.SettlementPending {
			return nil
		}

		latest, err := tx.FindSettlements(ctx, models.SettlementQuery{
			Flow:           s.policy.Flow,
			OwnerID:        record.OwnerID,
			CounterpartyID: record.CounterpartyID,
			Limit:          1,
		})
		if err != nil {
			return err
		}
		if len(latest) == 0 || latest[0].ID != record.ID {
			result = ReplayAbandoned
			return tx.SetSettlementStatus(ctx, s.policy.Flow, record.OwnerID, record.ID, models.SettlementFailed)
		}

		if _, err := tx.MarkLineItemsPaid(ctx, s.policy.Flow, record.OwnerID, record.CounterpartyID, record.SettledItemIDs, record.ID); err != nil {
			return err
		}
		if s.policy.DeductAdvances {
			if err := s.replayAdvances(ctx, tx, record); err != nil {
				return err
			}
		}

		acct, err = s.ledger.load(ctx, tx, record.OwnerID, record.CounterpartyID)
		if err != nil {
			return err
		}
		if acct.LastSettlementID != record.ID {
			if err := s.ledger.overwrite(ctx, tx, record.OwnerID, record.CounterpartyID, acct.Version, record.ClosingBalance, record.ID); err != nil {
				return err
			}
		}

		result = ReplayCommitted
		return tx.SetSettlementStatus(ctx, s.policy.Flow, record.OwnerID, record.ID, models.SettlementCommitted)
	})
	if err != nil {
		return "", wrapPersistence(err)
	}

	s.metrics.Reconciled(s.policy.Flow.String(), string(result))
	switch result {
	case ReplayCommitted:
		record.Status = models.SettlementCommitted
		s.logger.Info("pending settlement replayed", zap.String("settlement", record.ID))
		s.publish(ctx, record, acct)
	case ReplayAbandoned:
		s.logger.Warn("pending settlement superseded, marked failed", zap.String("settlement", record.ID))
	}
	return result, nil
}

// replayAdvances settles the advances the record deducted and recomputes the
// farmer's pending amount from what is still outstanding.
func (s *Service) replayAdvances(ctx context.Context, tx repository.Writer, record *models.SettlementRecord) error {
	if _, err := tx.SettleAdvances(ctx, record.OwnerID, record.CounterpartyID, record.SettledAdvanceIDs, record.ID); err != nil {
		return err
	}
	outstanding, err := s.agg.Within(tx).PendingAdvances(ctx, record.OwnerID, record.CounterpartyID)
	if err != nil {
		return err
	}
	pending := decimal.Max(outstanding.Total, decimal.Zero)
	return tx.SetFarmerPending(ctx, record.OwnerID, record.CounterpartyID, pending)
}
