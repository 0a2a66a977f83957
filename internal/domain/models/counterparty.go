package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FarmerLedgerBalance is the running balance carried forward between farmer
// settlements. Positive means the owner still has to pay the farmer, negative
// means the farmer has been paid ahead of milk supplied. It equals the last
// settlement's previous balance + milk amount - advances - amount paid.
type FarmerLedgerBalance struct {
	decimal.Decimal
}

// NewFarmerLedgerBalance wraps d as a farmer balance.
func NewFarmerLedgerBalance(d decimal.Decimal) FarmerLedgerBalance {
	return FarmerLedgerBalance{Decimal: d}
}

// MemberLedgerBalance is the running balance carried forward between member
// settlements. Positive means the member owes the owner for milk sold to
// them. It equals previous balance + unpaid milk amount - amount paid.
type MemberLedgerBalance struct {
	decimal.Decimal
}

// NewMemberLedgerBalance wraps d as a member balance.
func NewMemberLedgerBalance(d decimal.Decimal) MemberLedgerBalance {
	return MemberLedgerBalance{Decimal: d}
}

// Farmer is a milk supplier of the owner.
type Farmer struct {
	ID               string              `json:"id"`
	OwnerID          string              `json:"ownerId"`
	Code             string              `json:"code"`
	Name             string              `json:"name"`
	Mobile           string              `json:"mobile,omitempty"`
	RatePerLiter     decimal.Decimal     `json:"ratePerLiter"`
	Active           bool                `json:"active"`
	CurrentBalance   FarmerLedgerBalance `json:"currentBalance"`
	PendingAmount    decimal.Decimal     `json:"pendingAmount"`
	TotalQuantity    decimal.Decimal     `json:"totalQuantity"`
	TotalAmount      decimal.Decimal     `json:"totalAmount"`
	Version          int64               `json:"version"`
	LastSettlementID string              `json:"lastSettlementId,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Member is a milk buyer of the owner.
type Member struct {
	ID                    string              `json:"id"`
	OwnerID               string              `json:"ownerId"`
	Code                  string              `json:"code"`
	Name                  string              `json:"name"`
	Mobile                string              `json:"mobile,omitempty"`
	RatePerLiter          decimal.Decimal     `json:"ratePerLiter"`
	Active                bool                `json:"active"`
	SellingPaymentBalance MemberLedgerBalance `json:"sellingPaymentBalance"`
	TotalQuantity         decimal.Decimal     `json:"totalQuantity"`
	TotalAmount           decimal.Decimal     `json:"totalAmount"`
	Version               int64               `json:"version"`
	LastSettlementID      string              `json:"lastSettlementId,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}
