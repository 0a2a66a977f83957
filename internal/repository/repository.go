package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// Reader defines the owner-scoped lookups shared by every store backend.
// Lookups of a missing record return an error wrapping models.ErrNotFound.
type Reader interface {
	GetFarmer(ctx context.Context, ownerID, farmerID string) (*models.Farmer, error)
	GetMember(ctx context.Context, ownerID, memberID string) (*models.Member, error)

	GetLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) (*models.LineItem, error)
	// FindLineItems returns matching items ordered by date.
	FindLineItems(ctx context.Context, q models.LineItemQuery) ([]models.LineItem, error)

	GetAdvance(ctx context.Context, ownerID, advanceID string) (*models.Advance, error)
	// FindAdvances returns matching advances ordered by date.
	FindAdvances(ctx context.Context, q models.AdvanceQuery) ([]models.Advance, error)

	GetSettlement(ctx context.Context, flow models.Flow, ownerID, settlementID string) (*models.SettlementRecord, error)
	// FindSettlements returns matching records, newest first.
	FindSettlements(ctx context.Context, q models.SettlementQuery) ([]models.SettlementRecord, error)
}

// Writer is the mutation surface available inside a unit of work.
type Writer interface {
	Reader

	InsertFarmer(ctx context.Context, farmer *models.Farmer) error
	InsertMember(ctx context.Context, member *models.Member) error
	SetActive(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, active bool) error
	// AddTotals increments the recorded quantity and amount aggregates.
	AddTotals(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, quantity, amount decimal.Decimal) error

	// SetFarmerBalance overwrites the running balance when the stored version
	// still equals expectedVersion, bumping the version. A stale version
	// yields models.ErrConcurrentUpdate.
	SetFarmerBalance(ctx context.Context, ownerID, farmerID string, expectedVersion int64, balance models.FarmerLedgerBalance, settlementID string) error
	SetMemberBalance(ctx context.Context, ownerID, memberID string, expectedVersion int64, balance models.MemberLedgerBalance, settlementID string) error
	// AdjustBalance increments the running balance by delta and bumps the version.
	AdjustBalance(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, delta decimal.Decimal) error
	AddFarmerPending(ctx context.Context, ownerID, farmerID string, delta decimal.Decimal) error
	SetFarmerPending(ctx context.Context, ownerID, farmerID string, value decimal.Decimal) error

	InsertLineItem(ctx context.Context, item *models.LineItem) error
	// UpdateLineItem replaces an unpaid item. A paid item yields models.ErrItemSettled.
	UpdateLineItem(ctx context.Context, item *models.LineItem) error
	// DeleteLineItem removes an unpaid item. A paid item yields models.ErrItemSettled.
	DeleteLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) error
	// MarkLineItemsPaid flips isPaid on the listed unpaid items of one
	// counterparty and reports how many changed.
	MarkLineItemsPaid(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, itemIDs []string, settlementID string) (int64, error)

	InsertAdvance(ctx context.Context, advance *models.Advance) error
	UpdateAdvance(ctx context.Context, advance *models.Advance) error
	DeleteAdvance(ctx context.Context, ownerID, advanceID string) error
	// SettleAdvances fully settles the listed outstanding advances of a farmer
	// and reports how many changed.
	SettleAdvances(ctx context.Context, ownerID, farmerID string, advanceIDs []string, settlementID string) (int64, error)

	InsertSettlement(ctx context.Context, record *models.SettlementRecord) error
	UpdateSettlement(ctx context.Context, record *models.SettlementRecord) error
	SetSettlementStatus(ctx context.Context, flow models.Flow, ownerID, settlementID string, status models.SettlementStatus) error
}

// Store is a persistent backend. WithinTx runs fn as one unit of work: either
// every write fn performs lands or none does. Backends without transactions
// run fn's writes in order and document that best-effort mode.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Writer) error) error
	Transactional() bool
	Close(ctx context.Context) error
}
