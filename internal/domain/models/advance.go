package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdvanceStatus tracks how much of an advance has been recovered.
type AdvanceStatus string

const (
	AdvancePending AdvanceStatus = "pending"
	AdvancePartial AdvanceStatus = "partial"
	AdvanceSettled AdvanceStatus = "settled"
)

// Advance is a pre-payment to a farmer that is deducted from a later
// settlement.
type Advance struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	FarmerID      string          `json:"farmerId"`
	Amount        decimal.Decimal `json:"amount"`
	SettledAmount decimal.Decimal `json:"settledAmount"`
	Status        AdvanceStatus   `json:"status"`
	Note          string          `json:"note,omitempty"`
	Date          time.Time       `json:"date"`
	SettlementID  string          `json:"settlementId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Remaining is the part of the advance not yet recovered.
func (a Advance) Remaining() decimal.Decimal {
	return a.Amount.Sub(a.SettledAmount)
}

// Outstanding reports whether the advance still reduces future settlements.
func (a Advance) Outstanding() bool {
	return a.Status == AdvancePending || a.Status == AdvancePartial
}

// AdvanceQuery filters advances. An empty Statuses slice matches all.
type AdvanceQuery struct {
	OwnerID  string
	FarmerID string
	Statuses []AdvanceStatus
}
