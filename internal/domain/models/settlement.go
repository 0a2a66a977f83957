package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus tracks whether every write of a settlement has landed.
type SettlementStatus string

const (
	// SettlementPending records are written first; they stay pending only
	// when the store runs without transactions and a later write failed.
	SettlementPending SettlementStatus = "pending"
	// SettlementCommitted records have all their effects applied.
	SettlementCommitted SettlementStatus = "committed"
	// SettlementFailed records could not be replayed safely and need review.
	SettlementFailed SettlementStatus = "failed"
)

// SettlementRecord is the frozen snapshot of one settlement: a farmer
// payment or a member payment.
type SettlementRecord struct {
	ID             string          `json:"id"`
	Flow           Flow            `json:"flow"`
	OwnerID        string          `json:"ownerId"`
	CounterpartyID string          `json:"counterpartyId"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod"`
	Date           time.Time       `json:"date"`
	PeriodStart    *time.Time      `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time      `json:"periodEnd,omitempty"`

	PreviousBalance decimal.Decimal `json:"previousBalance"`
	// PeriodTotal is totalMilkAmount for farmers and totalSellAmount for
	// members. It may differ from ComputedPeriodTotal when overridden.
	PeriodTotal         decimal.Decimal `json:"periodTotal"`
	ComputedPeriodTotal decimal.Decimal `json:"computedPeriodTotal"`
	PeriodQuantity      decimal.Decimal `json:"periodQuantity"`
	ManualOverride      bool            `json:"manualOverride"`
	AdvanceDeduction    decimal.Decimal `json:"advanceDeduction"`
	NetPayable          decimal.Decimal `json:"netPayable"`
	ClosingBalance      decimal.Decimal `json:"closingBalance"`

	SettledItemIDs    []string `json:"settledItemIds"`
	SettledAdvanceIDs []string `json:"settledAdvanceIds,omitempty"`

	Status    SettlementStatus `json:"status"`
	Note      string           `json:"note,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// HasPeriod reports whether both period bounds are set.
func (s SettlementRecord) HasPeriod() bool {
	return s.PeriodStart != nil && s.PeriodEnd != nil
}

// SettlementQuery filters settlement records of one flow. An empty OwnerID
// matches every owner and is only used by the reconciliation job.
type SettlementQuery struct {
	Flow           Flow
	OwnerID        string
	CounterpartyID string
	WithPeriodOnly bool
	ExcludeID      string
	Status         SettlementStatus
	CreatedBefore  *time.Time
	Limit          int
}
