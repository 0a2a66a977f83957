package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository"
)

// Policy holds the rules that differ between the two flows.
type Policy struct {
	Flow models.Flow
	// MinAmount is the smallest accepted payment, inclusive.
	MinAmount decimal.Decimal
	// CheckOverlap forbids two settlements covering the same day.
	CheckOverlap bool
	// AllowExplicitItems lets callers pick the items to settle by id.
	AllowExplicitItems bool
	// DeductAdvances subtracts outstanding advances from the net payable.
	DeductAdvances bool
}

// FarmerPolicy is the milk purchase flow: advances are deducted and
// periods may not overlap.
func FarmerPolicy(minAmount decimal.Decimal) Policy {
	return Policy{
		Flow:           models.FlowFarmer,
		MinAmount:      minAmount,
		CheckOverlap:   true,
		DeductAdvances: true,
	}
}

// MemberPolicy is the milk selling flow: no advances, no overlap check, and
// the operator may settle a hand-picked set of entries.
func MemberPolicy(minAmount decimal.Decimal) Policy {
	return Policy{
		Flow:               models.FlowMember,
		MinAmount:          minAmount,
		AllowExplicitItems: true,
	}
}

// account is the flow-neutral view of a counterparty's ledger entry.
type account struct {
	ID               string
	Name             string
	Mobile           string
	Active           bool
	Balance          decimal.Decimal
	Version          int64
	LastSettlementID string
}

// ledger reads and overwrites the running balance of one flow, keeping the
// FarmerLedgerBalance and MemberLedgerBalance types apart.
type ledger interface {
	load(ctx context.Context, r repository.Reader, ownerID, id string) (account, error)
	overwrite(ctx context.Context, tx repository.Writer, ownerID, id string, version int64, closing decimal.Decimal, settlementID string) error
}

type farmerLedger struct{}

func (farmerLedger) load(ctx context.Context, r repository.Reader, ownerID, id string) (account, error) {
	f, err := r.GetFarmer(ctx, ownerID, id)
	if err != nil {
		return account{}, err
	}
	return account{
		ID:               f.ID,
		Name:             f.Name,
		Mobile:           f.Mobile,
		Active:           f.Active,
		Balance:          f.CurrentBalance.Decimal,
		Version:          f.Version,
		LastSettlementID: f.LastSettlementID,
	}, nil
}

func (farmerLedger) overwrite(ctx context.Context, tx repository.Writer, ownerID, id string, version int64, closing decimal.Decimal, settlementID string) error {
	return tx.SetFarmerBalance(ctx, ownerID, id, version, models.NewFarmerLedgerBalance(closing), settlementID)
}

type memberLedger struct{}

func (memberLedger) load(ctx context.Context, r repository.Reader, ownerID, id string) (account, error) {
	m, err := r.GetMember(ctx, ownerID, id)
	if err != nil {
		return account{}, err
	}
	return account{
		ID:               m.ID,
		Name:             m.Name,
		Mobile:           m.Mobile,
		Active:           m.Active,
		Balance:          m.SellingPaymentBalance.Decimal,
		Version:          m.Version,
		LastSettlementID: m.LastSettlementID,
	}, nil
}

func (memberLedger) overwrite(ctx context.Context, tx repository.Writer, ownerID, id string, version int64, closing decimal.Decimal, settlementID string) error {
	return tx.SetMemberBalance(ctx, ownerID, id, version, models.NewMemberLedgerBalance(closing), settlementID)
}

func ledgerFor(flow models.Flow) ledger {
	if flow == models.FlowFarmer {
		return farmerLedger{}
	}
	return memberLedger{}
}
