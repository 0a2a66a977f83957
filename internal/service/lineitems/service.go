// Package lineitems records farmer collections and member selling entries and
// keeps the counterparty aggregates in step with them.
package lineitems

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/metrics"
	"github.com/mamadbah2/dairy/internal/repository"
)

// CollectionInput records milk bought from a farmer in one shift. A nil Rate
// falls back to the farmer's rate per liter.
type CollectionInput struct {
	FarmerID string
	Date     time.Time
	Shift    models.Shift
	Quantity decimal.Decimal
	Rate     *decimal.Decimal
}

// EntryInput records milk sold to a member on one day. A nil Rate falls back
// to the member's rate per liter.
type EntryInput struct {
	MemberID string
	Date     time.Time
	Quantity decimal.Decimal
	Rate     *decimal.Decimal
}

// Update changes the inputs of an unpaid item. Nil fields are kept.
type Update struct {
	Quantity *decimal.Decimal
	Rate     *decimal.Decimal
}

// Service owns every write to line items.
type Service struct {
	store   repository.Store
	locker  lock.Locker
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService wires a line item service. loc is the business time zone used
// to resolve calendar days.
func NewService(store repository.Store, locker lock.Locker, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, locker: locker, loc: loc, metrics: m, logger: logger}
}

// RecordCollection stores a farmer collection and raises the farmer totals.
func (s *Service) RecordCollection(ctx context.Context, ownerID string, in CollectionInput) (*models.LineItem, error) {
	if in.Shift == "" {
		in.Shift = models.ShiftMorning
	}
	if !in.Shift.Valid() {
		return nil, fmt.Errorf("%w: unknown shift %q", models.ErrInvalidRequest, in.Shift)
	}
	if err := validateInputs(in.Quantity, in.Rate); err != nil {
		return nil, err
	}

	var item *models.LineItem
	err := s.withLock(ctx, models.FlowFarmer, ownerID, in.FarmerID, func(ctx context.Context, tx repository.Writer) error {
		farmer, err := tx.GetFarmer(ctx, ownerID, in.FarmerID)
		if err != nil {
			return err
		}

		item = &models.LineItem{
			Flow:           models.FlowFarmer,
			OwnerID:        ownerID,
			CounterpartyID: farmer.ID,
			Date:           models.StartOfDay(in.Date, s.loc),
			Shift:          in.Shift,
			Quantity:       in.Quantity,
			Rate:           rateOr(in.Rate, farmer.RatePerLiter),
		}
		item.Recompute()
		if err := tx.InsertLineItem(ctx, item); err != nil {
			return err
		}
		return tx.AddTotals(ctx, models.FlowFarmer, ownerID, farmer.ID, item.Quantity, item.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LineItem(models.FlowFarmer.String(), "create")
	s.logger.Debug("collection recorded",
		zap.String("owner", ownerID),
		zap.String("farmer", item.CounterpartyID),
		zap.String("amount", item.Amount.String()))
	return item, nil
}

// RecordEntry stores a member selling entry. A member has at most one entry
// per day: a second recording on the same day adds its quantity to the unpaid
// entry and reprices it with the latest rate.
func (s *Service) RecordEntry(ctx context.Context, ownerID string, in EntryInput) (*models.LineItem, error) {
	if err := validateInputs(in.Quantity, in.Rate); err != nil {
		return nil, err
	}

	var (
		item   *models.LineItem
		merged bool
	)
	err := s.withLock(ctx, models.FlowMember, ownerID, in.MemberID, func(ctx context.Context, tx repository.Writer) error {
		member, err := tx.GetMember(ctx, ownerID, in.MemberID)
		if err != nil {
			return err
		}

		day := models.StartOfDay(in.Date, s.loc)
		end := models.EndOfDay(in.Date, s.loc)
		existing, err := tx.FindLineItems(ctx, models.LineItemQuery{
			Flow:           models.FlowMember,
			OwnerID:        ownerID,
			CounterpartyID: member.ID,
			Window:         models.Window{From: &day, To: &end},
		})
		if err != nil {
			return err
		}

		rate := rateOr(in.Rate, member.RatePerLiter)
		if len(existing) == 0 {
			item = &models.LineItem{
				Flow:           models.FlowMember,
				OwnerID:        ownerID,
				CounterpartyID: member.ID,
				Date:           day,
				Quantity:       in.Quantity,
				Rate:           rate,
			}
			item.Recompute()
			if err := tx.InsertLineItem(ctx, item); err != nil {
				return err
			}
			return tx.AddTotals(ctx, models.FlowMember, ownerID, member.ID, item.Quantity, item.Amount)
		}

		current := existing[0]
		if current.IsPaid {
			return fmt.Errorf("entry for %s: %w", day.In(s.loc).Format(models.DayLayout), models.ErrItemSettled)
		}
		oldAmount := current.Amount
		current.Quantity = current.Quantity.Add(in.Quantity)
		current.Rate = rate
		current.Recompute()
		if err := tx.UpdateLineItem(ctx, &current); err != nil {
			return err
		}
		item, merged = &current, true
		return tx.AddTotals(ctx, models.FlowMember, ownerID, member.ID, in.Quantity, current.Amount.Sub(oldAmount))
	})
	if err != nil {
		return nil, err
	}

	op := "create"
	if merged {
		op = "merge"
	}
	s.metrics.LineItem(models.FlowMember.String(), op)
	s.logger.Debug("selling entry recorded",
		zap.String("owner", ownerID),
		zap.String("member", item.CounterpartyID),
		zap.Bool("merged", merged),
		zap.String("amount", item.Amount.String()))
	return item, nil
}

// UpdateItem changes the quantity or rate of an unpaid item, recomputes its
// amount and moves the counterparty totals by the difference.
func (s *Service) UpdateItem(ctx context.Context, flow models.Flow, ownerID, itemID string, upd Update) (*models.LineItem, error) {
	if upd.Quantity != nil && !upd.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", models.ErrInvalidAmount)
	}
	if upd.Rate != nil && upd.Rate.IsNegative() {
		return nil, fmt.Errorf("%w: rate cannot be negative", models.ErrInvalidAmount)
	}

	current, err := s.store.GetLineItem(ctx, flow, ownerID, itemID)
	if err != nil {
		return nil, err
	}

	var item *models.LineItem
	err = s.withLock(ctx, flow, ownerID, current.CounterpartyID, func(ctx context.Context, tx repository.Writer) error {
		loaded, err := tx.GetLineItem(ctx, flow, ownerID, itemID)
		if err != nil {
			return err
		}
		if loaded.IsPaid {
			return fmt.Errorf("line item %s: %w", itemID, models.ErrItemSettled)
		}

		oldQuantity, oldAmount := loaded.Quantity, loaded.Amount
		if upd.Quantity != nil {
			loaded.Quantity = *upd.Quantity
		}
		if upd.Rate != nil {
			loaded.Rate = *upd.Rate
		}
		loaded.Recompute()
		if err := tx.UpdateLineItem(ctx, loaded); err != nil {
			return err
		}
		item = loaded
		return tx.AddTotals(ctx, flow, ownerID, loaded.CounterpartyID,
			loaded.Quantity.Sub(oldQuantity), loaded.Amount.Sub(oldAmount))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.LineItem(flow.String(), "update")
	return item, nil
}

// DeleteItem removes an unpaid item and reverses its contribution to the
// counterparty totals.
func (s *Service) DeleteItem(ctx context.Context, flow models.Flow, ownerID, itemID string) error {
	current, err := s.store.GetLineItem(ctx, flow, ownerID, itemID)
	if err != nil {
		return err
	}

	err = s.withLock(ctx, flow, ownerID, current.CounterpartyID, func(ctx context.Context, tx repository.Writer) error {
		loaded, err := tx.GetLineItem(ctx, flow, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLineItem(ctx, flow, ownerID, itemID); err != nil {
			return err
		}
		return tx.AddTotals(ctx, flow, ownerID, loaded.CounterpartyID, loaded.Quantity.Neg(), loaded.Amount.Neg())
	})
	if err != nil {
		return err
	}
	s.metrics.LineItem(flow.String(), "delete")
	return nil
}

// ListItems returns the items of a counterparty in the range, oldest first.
// A nil paid matches both paid and unpaid items.
func (s *Service) ListItems(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, r models.DateRange, paid *bool) ([]models.LineItem, error) {
	w, err := r.Window(s.loc)
	if err != nil {
		return nil, err
	}
	return s.store.FindLineItems(ctx, models.LineItemQuery{
		Flow:           flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Window:         w,
		Paid:           paid,
	})
}

func (s *Service) withLock(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, fn func(ctx context.Context, tx repository.Writer) error) error {
	release, err := s.locker.Acquire(ctx, lock.CounterpartyKey(flow, ownerID, counterpartyID))
	if err != nil {
		return err
	}
	defer release()
	return s.store.WithinTx(ctx, fn)
}

func validateInputs(quantity decimal.Decimal, rate *decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", models.ErrInvalidAmount)
	}
	if rate != nil && rate.IsNegative() {
		return fmt.Errorf("%w: rate cannot be negative", models.ErrInvalidAmount)
	}
	return nil
}

func rateOr(rate *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if rate != nil {
		return *rate
	}
	return fallback
}
