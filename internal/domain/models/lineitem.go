package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shift is the milking session a farmer collection was recorded for.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
)

// Valid reports whether s is a known shift.
func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftEvening
}

// LineItem is one dated, rated quantity of milk: a purchase collection in the
// farmer flow or a selling entry in the member flow.
type LineItem struct {
	ID             string          `json:"id"`
	Flow           Flow            `json:"flow"`
	OwnerID        string          `json:"ownerId"`
	CounterpartyID string          `json:"counterpartyId"`
	Date           time.Time       `json:"date"`
	Shift          Shift           `json:"shift,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	IsPaid         bool            `json:"isPaid"`
	SettlementID   string          `json:"settlementId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Recompute derives Amount from Quantity and Rate. Every path that persists a
// line item calls it first so the stored amount never drifts from its inputs.
func (l *LineItem) Recompute() {
	l.Amount = l.Quantity.Mul(l.Rate)
}

// LineItemQuery filters line items of one flow. Zero-valued fields do not
// filter.
type LineItemQuery struct {
	Flow           Flow
	OwnerID        string
	CounterpartyID string
	Window         Window
	Paid           *bool
	IDs            []string
}
