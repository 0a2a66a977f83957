// Package settlement computes and commits counterparty settlements: it turns
// a running balance, the unpaid line items of a period and any outstanding
// advances into a net payable, applies a payment and carries the closing
// balance forward.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/metrics"
	"github.com/mamadbah2/dairy/internal/repository"
	"github.com/mamadbah2/dairy/internal/service/aggregation"
	"github.com/mamadbah2/dairy/internal/service/notify"
)

// Request asks for one settlement.
type Request struct {
	OwnerID        string
	CounterpartyID string
	Amount         decimal.Decimal
	PaymentMethod  string
	// Date defaults to today in the business time zone.
	Date   time.Time
	Period models.DateRange
	// ManualPeriodTotal replaces the aggregated total in the balance math.
	// The items marked paid are still exactly the aggregated ones.
	ManualPeriodTotal *decimal.Decimal
	// ItemIDs selects the items to settle instead of the period filter.
	ItemIDs []string
	Note    string
}

// EditRequest corrects a committed settlement. Nil fields are kept.
type EditRequest struct {
	OwnerID       string
	SettlementID  string
	Amount        *decimal.Decimal
	PeriodTotal   *decimal.Decimal
	Period        *models.DateRange
	PaymentMethod *string
	Note          *string
}

// Summary is a side-effect free preview of a settlement. ClosingBalance
// equals NetPayable because no payment is applied yet.
type Summary struct {
	Flow             models.Flow     `json:"flow"`
	CounterpartyID   string          `json:"counterpartyId"`
	PeriodStart      *time.Time      `json:"periodStart,omitempty"`
	PeriodEnd        *time.Time      `json:"periodEnd,omitempty"`
	PreviousBalance  decimal.Decimal `json:"previousBalance"`
	PeriodTotal      decimal.Decimal `json:"periodTotal"`
	PeriodQuantity   decimal.Decimal `json:"periodQuantity"`
	AdvanceDeduction decimal.Decimal `json:"advanceDeduction"`
	NetPayable       decimal.Decimal `json:"netPayable"`
	ClosingBalance   decimal.Decimal `json:"closingBalance"`
	ItemIDs          []string        `json:"itemIds"`
	AdvanceIDs       []string        `json:"advanceIds,omitempty"`
}

// Service settles one flow.
type Service struct {
	policy    Policy
	ledger    ledger
	store     repository.Store
	agg       *aggregation.Aggregator
	locker    lock.Locker
	publisher notify.Publisher
	metrics   *metrics.Metrics
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// Deps are the collaborators shared by both flows.
type Deps struct {
	Store     repository.Store
	Locker    lock.Locker
	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	Location  *time.Location
	Logger    *zap.Logger
}

// NewService builds the settlement service for policy.Flow.
func NewService(policy Policy, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		policy:    policy,
		ledger:    ledgerFor(policy.Flow),
		store:     deps.Store,
		agg:       aggregation.New(deps.Store),
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		loc:       loc,
		logger:    logger.With(zap.String("flow", policy.Flow.String())),
		now:       time.Now,
	}
}

// NewFarmerService settles farmer milk purchases.
func NewFarmerService(minAmount decimal.Decimal, deps Deps) *Service {
	return NewService(FarmerPolicy(minAmount), deps)
}

// NewMemberService settles member milk sales.
func NewMemberService(minAmount decimal.Decimal, deps Deps) *Service {
	return NewService(MemberPolicy(minAmount), deps)
}

// Flow reports which flow the service settles.
func (s *Service) Flow() models.Flow {
	return s.policy.Flow
}

// Preview computes what a settlement over the range would look like.
func (s *Service) Preview(ctx context.Context, ownerID, counterpartyID string, r models.DateRange, itemIDs []string) (*Summary, error) {
	if err := s.checkItemSelection(itemIDs); err != nil {
		return nil, err
	}
	w, err := r.Window(s.loc)
	if err != nil {
		return nil, err
	}

	acct, err := s.ledger.load(ctx, s.store, ownerID, counterpartyID)
	if err != nil {
		return nil, err
	}
	summary, _, _, err := s.summarise(ctx, s.agg, ownerID, acct, w, itemIDs)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Settle validates, computes and commits one settlement as a single unit of
// work while holding the counterparty lock.
func (s *Service) Settle(ctx context.Context, req Request) (record *models.SettlementRecord, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveSettlement(s.policy.Flow.String(), outcome(err), time.Since(started))
	}()

	if err := s.checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.ManualPeriodTotal != nil && req.ManualPeriodTotal.IsNegative() {
		return nil, fmt.Errorf("%w: period total cannot be negative", models.ErrInvalidAmount)
	}
	if err := s.checkItemSelection(req.ItemIDs); err != nil {
		return nil, err
	}
	w, err := req.Period.Window(s.loc)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CounterpartyKey(s.policy.Flow, req.OwnerID, req.CounterpartyID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.catchUp(ctx, req.OwnerID, req.CounterpartyID); err != nil {
		return nil, err
	}

	var acct account
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		acct, err = s.ledger.load(ctx, tx, req.OwnerID, req.CounterpartyID)
		if err != nil {
			return err
		}
		if !acct.Active {
			return fmt.Errorf("%s %s is inactive: %w", s.policy.Flow, acct.ID, models.ErrNotFound)
		}
		if s.policy.CheckOverlap && w.Complete() {
			if err := s.checkOverlap(ctx, tx, req.OwnerID, acct.ID, w, ""); err != nil {
				return err
			}
		}

		summary, period, deductions, err := s.summarise(ctx, s.agg.Within(tx), req.OwnerID, acct, w, req.ItemIDs)
		if err != nil {
			return err
		}

		record = s.newRecord(req, summary, period)
		if err := tx.InsertSettlement(ctx, record); err != nil {
			return err
		}
		return s.commit(ctx, tx, record, acct, deductions)
	})
	if err != nil {
		return nil, wrapPersistence(err)
	}

	s.logger.Info("settlement committed",
		zap.String("owner", record.OwnerID),
		zap.String("counterparty", record.CounterpartyID),
		zap.String("settlement", record.ID),
		zap.String("amount", record.Amount.String()),
		zap.String("closing_balance", record.ClosingBalance.String()),
		zap.Int("items", len(record.SettledItemIDs)))
	s.publish(ctx, record, acct)
	return record, nil
}

// Edit corrects the amount, period total, period bounds or labels of a
// committed settlement. Only the change in amount reaches the live balance;
// a new period total is recorded on the settlement alone.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*models.SettlementRecord, error) {
	if req.Amount != nil {
		if err := s.checkAmount(*req.Amount); err != nil {
			return nil, err
		}
	}
	if req.PeriodTotal != nil && req.PeriodTotal.IsNegative() {
		return nil, fmt.Errorf("%w: period total cannot be negative", models.ErrInvalidAmount)
	}
	if req.Period != nil {
		if _, err := req.Period.Window(s.loc); err != nil {
			return nil, err
		}
	}

	existing, err := s.store.GetSettlement(ctx, s.policy.Flow, req.OwnerID, req.SettlementID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.CounterpartyKey(s.policy.Flow, req.OwnerID, existing.CounterpartyID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.catchUp(ctx, req.OwnerID, existing.CounterpartyID); err != nil {
		return nil, err
	}

	var record *models.SettlementRecord
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		record, err = tx.GetSettlement(ctx, s.policy.Flow, req.OwnerID, req.SettlementID)
		if err != nil {
			return err
		}
		if record.Status != models.SettlementCommitted {
			return fmt.Errorf("%w: settlement %s is %s", models.ErrInvalidRequest, record.ID, record.Status)
		}

		if req.Period != nil {
			// A bound left out keeps its stored value.
			r := *req.Period
			if r.Start == nil {
				r.Start = record.PeriodStart
			}
			if r.End == nil {
				r.End = record.PeriodEnd
			}
			window, err := r.Window(s.loc)
			if err != nil {
				return err
			}
			if s.policy.CheckOverlap && window.Complete() {
				if err := s.checkOverlap(ctx, tx, req.OwnerID, record.CounterpartyID, window, record.ID); err != nil {
					return err
				}
			}
			record.PeriodStart, record.PeriodEnd = window.From, window.To
		}

		oldAmount := record.Amount
		if req.Amount != nil {
			record.Amount = *req.Amount
		}
		if req.PeriodTotal != nil {
			record.PeriodTotal = *req.PeriodTotal
			record.ManualOverride = !record.PeriodTotal.Equal(record.ComputedPeriodTotal)
		}
		if req.PaymentMethod != nil {
			record.PaymentMethod = *req.PaymentMethod
		}
		if req.Note != nil {
			record.Note = *req.Note
		}
		record.NetPayable = computeNet(record.PreviousBalance, record.PeriodTotal, record.AdvanceDeduction)
		record.ClosingBalance = record.NetPayable.Sub(record.Amount)

		if err := tx.UpdateSettlement(ctx, record); err != nil {
			return err
		}

		delta := record.Amount.Sub(oldAmount)
		if delta.IsZero() {
			return nil
		}
		return tx.AdjustBalance(ctx, s.policy.Flow, req.OwnerID, record.CounterpartyID, delta.Neg())
	})
	if err != nil {
		return nil, wrapPersistence(err)
	}

	if req.PeriodTotal != nil {
		s.logger.Info("settlement period total corrected; live balance unchanged",
			zap.String("settlement", record.ID),
			zap.String("period_total", record.PeriodTotal.String()))
	}
	s.logger.Info("settlement edited",
		zap.String("owner", record.OwnerID),
		zap.String("settlement", record.ID),
		zap.String("amount", record.Amount.String()))
	return record, nil
}

// Get loads one settlement of the owner.
func (s *Service) Get(ctx context.Context, ownerID, settlementID string) (*models.SettlementRecord, error) {
	return s.store.GetSettlement(ctx, s.policy.Flow, ownerID, settlementID)
}

// List returns the settlements of a counterparty, newest first.
func (s *Service) List(ctx context.Context, ownerID, counterpartyID string, limit int) ([]models.SettlementRecord, error) {
	return s.store.FindSettlements(ctx, models.SettlementQuery{
		Flow:           s.policy.Flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		Limit:          limit,
	})
}

func (s *Service) summarise(ctx context.Context, agg *aggregation.Aggregator, ownerID string, acct account, w models.Window, itemIDs []string) (*Summary, aggregation.Period, aggregation.Deductions, error) {
	var (
		period aggregation.Period
		err    error
	)
	if len(itemIDs) > 0 {
		period, err = agg.ItemsByID(ctx, s.policy.Flow, ownerID, acct.ID, itemIDs)
	} else {
		period, err = agg.AggregateUnpaid(ctx, s.policy.Flow, ownerID, acct.ID, w)
	}
	if err != nil {
		return nil, period, aggregation.Deductions{}, err
	}

	deductions := aggregation.Deductions{Total: decimal.Zero}
	if s.policy.DeductAdvances {
		deductions, err = agg.PendingAdvances(ctx, ownerID, acct.ID)
		if err != nil {
			return nil, period, deductions, err
		}
	}

	net := computeNet(acct.Balance, period.TotalAmount, deductions.Total)
	return &Summary{
		Flow:             s.policy.Flow,
		CounterpartyID:   acct.ID,
		PeriodStart:      w.From,
		PeriodEnd:        w.To,
		PreviousBalance:  acct.Balance,
		PeriodTotal:      period.TotalAmount,
		PeriodQuantity:   period.TotalQuantity,
		AdvanceDeduction: deductions.Total,
		NetPayable:       net,
		ClosingBalance:   net,
		ItemIDs:          period.ItemIDs(),
		AdvanceIDs:       deductions.AdvanceIDs(),
	}, period, deductions, nil
}

func (s *Service) newRecord(req Request, summary *Summary, period aggregation.Period) *models.SettlementRecord {
	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	periodTotal := summary.PeriodTotal
	if req.ManualPeriodTotal != nil {
		periodTotal = *req.ManualPeriodTotal
	}
	net := computeNet(summary.PreviousBalance, periodTotal, summary.AdvanceDeduction)

	return &models.SettlementRecord{
		Flow:                s.policy.Flow,
		OwnerID:             req.OwnerID,
		CounterpartyID:      summary.CounterpartyID,
		Amount:              req.Amount,
		PaymentMethod:       req.PaymentMethod,
		Date:                models.StartOfDay(date, s.loc),
		PeriodStart:         summary.PeriodStart,
		PeriodEnd:           summary.PeriodEnd,
		PreviousBalance:     summary.PreviousBalance,
		PeriodTotal:         periodTotal,
		ComputedPeriodTotal: summary.PeriodTotal,
		PeriodQuantity:      period.TotalQuantity,
		ManualOverride:      !periodTotal.Equal(summary.PeriodTotal),
		AdvanceDeduction:    summary.AdvanceDeduction,
		NetPayable:          net,
		ClosingBalance:      net.Sub(req.Amount),
		SettledItemIDs:      summary.ItemIDs,
		SettledAdvanceIDs:   summary.AdvanceIDs,
		Status:              models.SettlementPending,
		Note:                req.Note,
	}
}

// commit applies the effects of an inserted pending record: items paid,
// advances settled, balance overwritten, record committed.
func (s *Service) commit(ctx context.Context, tx repository.Writer, record *models.SettlementRecord, acct account, deductions aggregation.Deductions) error {
	marked, err := tx.MarkLineItemsPaid(ctx, s.policy.Flow, record.OwnerID, record.CounterpartyID, record.SettledItemIDs, record.ID)
	if err != nil {
		return err
	}
	if marked != int64(len(record.SettledItemIDs)) {
		return fmt.Errorf("%w: %d of %d items were still unpaid", models.ErrConcurrentUpdate, marked, len(record.SettledItemIDs))
	}

	if s.policy.DeductAdvances {
		settled, err := tx.SettleAdvances(ctx, record.OwnerID, record.CounterpartyID, record.SettledAdvanceIDs, record.ID)
		if err != nil {
			return err
		}
		if settled != int64(len(deductions.Advances)) {
			return fmt.Errorf("%w: %d of %d advances were still outstanding", models.ErrConcurrentUpdate, settled, len(deductions.Advances))
		}
		if err := tx.SetFarmerPending(ctx, record.OwnerID, record.CounterpartyID, decimal.Zero); err != nil {
			return err
		}
	}

	if err := s.ledger.overwrite(ctx, tx, record.OwnerID, record.CounterpartyID, acct.Version, record.ClosingBalance, record.ID); err != nil {
		return err
	}
	if err := tx.SetSettlementStatus(ctx, s.policy.Flow, record.OwnerID, record.ID, models.SettlementCommitted); err != nil {
		return err
	}
	record.Status = models.SettlementCommitted
	return nil
}

func (s *Service) checkOverlap(ctx context.Context, r repository.Reader, ownerID, counterpartyID string, w models.Window, excludeID string) error {
	prior, err := r.FindSettlements(ctx, models.SettlementQuery{
		Flow:           s.policy.Flow,
		OwnerID:        ownerID,
		CounterpartyID: counterpartyID,
		WithPeriodOnly: true,
		ExcludeID:      excludeID,
	})
	if err != nil {
		return err
	}

	var conflicts []models.ConflictingPeriod
	for _, rec := range prior {
		if rec.Status == models.SettlementFailed || !rec.HasPeriod() {
			continue
		}
		if w.Overlaps(models.Window{From: rec.PeriodStart, To: rec.PeriodEnd}) {
			conflicts = append(conflicts, models.ConflictingPeriod{
				SettlementID: rec.ID,
				Start:        *rec.PeriodStart,
				End:          *rec.PeriodEnd,
			})
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &models.PeriodConflictError{Requested: w, Conflicts: conflicts, Location: s.loc}
}

func (s *Service) checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount cannot be negative", models.ErrInvalidAmount)
	}
	if amount.LessThan(s.policy.MinAmount) {
		return fmt.Errorf("%w: amount must be at least %s", models.ErrInvalidAmount, s.policy.MinAmount)
	}
	return nil
}

func (s *Service) checkItemSelection(itemIDs []string) error {
	if len(itemIDs) > 0 && !s.policy.AllowExplicitItems {
		return fmt.Errorf("%w: %s settlements cannot select items by id", models.ErrInvalidRequest, s.policy.Flow)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, record *models.SettlementRecord, acct account) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, notify.SettlementCompleted{
		Flow:             record.Flow,
		OwnerID:          record.OwnerID,
		SettlementID:     record.ID,
		CounterpartyID:   record.CounterpartyID,
		CounterpartyName: acct.Name,
		Mobile:           acct.Mobile,
		Amount:           record.Amount,
		PaymentMethod:    record.PaymentMethod,
		Date:             record.Date,
		PeriodEnd:        record.PeriodEnd,
		ClosingBalance:   record.ClosingBalance,
	})
}

// computeNet is previous + period total - advance deduction.
func computeNet(previous, periodTotal, deduction decimal.Decimal) decimal.Decimal {
	return previous.Add(periodTotal).Sub(deduction)
}

var domainErrors = []error{
	models.ErrNotFound,
	models.ErrInvalidAmount,
	models.ErrInvalidPeriod,
	models.ErrInvalidRequest,
	models.ErrPeriodConflict,
	models.ErrItemSettled,
	models.ErrConcurrentUpdate,
	models.ErrLockUnavailable,
	models.ErrPersistence,
}

func isDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapPersistence tags store failures so callers can tell them from
// rejections.
func wrapPersistence(err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrPersistence, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, models.ErrPeriodConflict),
		errors.Is(err, models.ErrConcurrentUpdate),
		errors.Is(err, models.ErrLockUnavailable):
		return metrics.OutcomeConflict
	case errors.Is(err, models.ErrPersistence) || !isDomain(err):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
