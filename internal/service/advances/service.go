// Package advances manages pre-payments made to farmers. Outstanding advances
// are deducted by the next farmer settlement; the farmer's pendingAmount
// mirrors what is still to be recovered.
package advances

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/repository"
)

// Input describes a new advance. A zero Date means today.
type Input struct {
	Amount decimal.Decimal
	Note   string
	Date   time.Time
}

// Service owns the advance sub-ledger.
type Service struct {
	store  repository.Store
	locker lock.Locker
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the advance service.
func NewService(store repository.Store, locker lock.Locker, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, locker: locker, loc: loc, logger: logger, now: time.Now}
}

// Add records a pending advance and raises the farmer's pending amount.
func (s *Service) Add(ctx context.Context, ownerID, farmerID string, in Input) (*models.Advance, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: advance must be positive", models.ErrInvalidAmount)
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	var advance *models.Advance
	err := s.withFarmerLock(ctx, ownerID, farmerID, func(ctx context.Context, tx repository.Writer) error {
		farmer, err := tx.GetFarmer(ctx, ownerID, farmerID)
		if err != nil {
			return err
		}
		advance = &models.Advance{
			OwnerID:       ownerID,
			FarmerID:      farmer.ID,
			Amount:        in.Amount,
			SettledAmount: decimal.Zero,
			Status:        models.AdvancePending,
			Note:          in.Note,
			Date:          models.StartOfDay(date, s.loc),
		}
		if err := tx.InsertAdvance(ctx, advance); err != nil {
			return err
		}
		return tx.AddFarmerPending(ctx, ownerID, farmer.ID, advance.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("advance added",
		zap.String("owner", ownerID),
		zap.String("farmer", farmerID),
		zap.String("amount", advance.Amount.String()))
	return advance, nil
}

// Settle recovers part or all of an advance outside a settlement. A nil
// override recovers everything that remains. The farmer's pending amount
// drops by the recovered increment and never below zero.
func (s *Service) Settle(ctx context.Context, ownerID, advanceID string, override *decimal.Decimal) (*models.Advance, error) {
	if override != nil && !override.IsPositive() {
		return nil, fmt.Errorf("%w: settled amount must be positive", models.ErrInvalidAmount)
	}

	current, err := s.store.GetAdvance(ctx, ownerID, advanceID)
	if err != nil {
		return nil, err
	}

	var advance *models.Advance
	err = s.withFarmerLock(ctx, ownerID, current.FarmerID, func(ctx context.Context, tx repository.Writer) error {
		loaded, err := tx.GetAdvance(ctx, ownerID, advanceID)
		if err != nil {
			return err
		}
		if !loaded.Outstanding() {
			return fmt.Errorf("advance %s: %w", advanceID, models.ErrItemSettled)
		}

		increment := loaded.Remaining()
		if override != nil {
			increment = *override
		}
		if increment.GreaterThan(loaded.Remaining()) {
			return fmt.Errorf("%w: %s exceeds the remaining %s", models.ErrInvalidAmount, increment, loaded.Remaining())
		}

		loaded.SettledAmount = loaded.SettledAmount.Add(increment)
		loaded.Status = models.AdvancePartial
		if loaded.SettledAmount.GreaterThanOrEqual(loaded.Amount) {
			loaded.Status = models.AdvanceSettled
		}
		if err := tx.UpdateAdvance(ctx, loaded); err != nil {
			return err
		}
		advance = loaded
		return lowerPending(ctx, tx, ownerID, loaded.FarmerID, increment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("advance settled",
		zap.String("owner", ownerID),
		zap.String("advance", advance.ID),
		zap.String("status", string(advance.Status)))
	return advance, nil
}

// Delete removes an advance that has not been fully recovered. Only a still
// pending advance gives its amount back to the farmer's pending amount.
func (s *Service) Delete(ctx context.Context, ownerID, advanceID string) error {
	current, err := s.store.GetAdvance(ctx, ownerID, advanceID)
	if err != nil {
		return err
	}

	return s.withFarmerLock(ctx, ownerID, current.FarmerID, func(ctx context.Context, tx repository.Writer) error {
		loaded, err := tx.GetAdvance(ctx, ownerID, advanceID)
		if err != nil {
			return err
		}
		if loaded.Status == models.AdvanceSettled {
			return fmt.Errorf("advance %s: %w", advanceID, models.ErrItemSettled)
		}
		if err := tx.DeleteAdvance(ctx, ownerID, advanceID); err != nil {
			return err
		}
		if loaded.Status != models.AdvancePending {
			return nil
		}
		return lowerPending(ctx, tx, ownerID, loaded.FarmerID, loaded.Amount)
	})
}

// List returns a farmer's advances filtered by status, oldest first.
func (s *Service) List(ctx context.Context, ownerID, farmerID string, statuses ...models.AdvanceStatus) ([]models.Advance, error) {
	if _, err := s.store.GetFarmer(ctx, ownerID, farmerID); err != nil {
		return nil, err
	}
	return s.store.FindAdvances(ctx, models.AdvanceQuery{
		OwnerID:  ownerID,
		FarmerID: farmerID,
		Statuses: statuses,
	})
}

func (s *Service) withFarmerLock(ctx context.Context, ownerID, farmerID string, fn func(ctx context.Context, tx repository.Writer) error) error {
	release, err := s.locker.Acquire(ctx, lock.CounterpartyKey(models.FlowFarmer, ownerID, farmerID))
	if err != nil {
		return err
	}
	defer release()
	return s.store.WithinTx(ctx, fn)
}

func lowerPending(ctx context.Context, tx repository.Writer, ownerID, farmerID string, by decimal.Decimal) error {
	farmer, err := tx.GetFarmer(ctx, ownerID, farmerID)
	if err != nil {
		return err
	}
	return tx.SetFarmerPending(ctx, ownerID, farmerID, decimal.Max(farmer.PendingAmount.Sub(by), decimal.Zero))
}
