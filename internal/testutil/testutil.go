// Package testutil provides store fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository/sqlstore"
)

// Owner is the tenant every fixture belongs to unless stated otherwise.
const Owner = "owner-1"

// NewStore opens a migrated SQLite store in a temp directory.
func NewStore(t testing.TB) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Day parses a YYYY-MM-DD date in UTC.
func Day(s string) time.Time {
	d, err := time.Parse(models.DayLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// DayPtr is Day returning a pointer.
func DayPtr(s string) *time.Time {
	d := Day(s)
	return &d
}

// SeedFarmer stores an active farmer with the given balance and rate.
func SeedFarmer(t testing.TB, store *sqlstore.Store, balance, rate string) *models.Farmer {
	t.Helper()
	farmer := &models.Farmer{
		OwnerID:        Owner,
		Code:           "F-" + time.Now().Format("150405.000000"),
		Name:           "Test Farmer",
		Mobile:         "+15550000001",
		RatePerLiter:   Dec(rate),
		Active:         true,
		CurrentBalance: models.NewFarmerLedgerBalance(Dec(balance)),
		PendingAmount:  decimal.Zero,
		TotalQuantity:  decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
	require.NoError(t, store.InsertFarmer(context.Background(), farmer))
	return farmer
}

// SeedMember stores an active member with the given balance and rate.
func SeedMember(t testing.TB, store *sqlstore.Store, balance, rate string) *models.Member {
	t.Helper()
	member := &models.Member{
		OwnerID:               Owner,
		Code:                  "M-" + time.Now().Format("150405.000000"),
		Name:                  "Test Member",
		Mobile:                "+15550000002",
		RatePerLiter:          Dec(rate),
		Active:                true,
		SellingPaymentBalance: models.NewMemberLedgerBalance(Dec(balance)),
		TotalQuantity:         decimal.Zero,
		TotalAmount:           decimal.Zero,
	}
	require.NoError(t, store.InsertMember(context.Background(), member))
	return member
}

// SeedItem stores an unpaid line item without touching counterparty totals.
func SeedItem(t testing.TB, store *sqlstore.Store, flow models.Flow, counterpartyID, day, quantity, rate string) models.LineItem {
	t.Helper()
	item := models.LineItem{
		Flow:           flow,
		OwnerID:        Owner,
		CounterpartyID: counterpartyID,
		Date:           Day(day),
		Quantity:       Dec(quantity),
		Rate:           Dec(rate),
	}
	if flow == models.FlowFarmer {
		item.Shift = models.ShiftMorning
	}
	item.Recompute()
	require.NoError(t, store.InsertLineItem(context.Background(), &item))
	return item
}

// SeedAdvance stores a pending advance and raises the farmer's pending amount.
func SeedAdvance(t testing.TB, store *sqlstore.Store, farmerID, amount string) models.Advance {
	t.Helper()
	ctx := context.Background()
	advance := models.Advance{
		OwnerID:       Owner,
		FarmerID:      farmerID,
		Amount:        Dec(amount),
		SettledAmount: decimal.Zero,
		Status:        models.AdvancePending,
		Date:          Day("2024-01-01"),
	}
	require.NoError(t, store.InsertAdvance(ctx, &advance))
	require.NoError(t, store.AddFarmerPending(ctx, Owner, farmerID, advance.Amount))
	return advance
}
