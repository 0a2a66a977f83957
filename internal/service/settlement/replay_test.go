package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/testutil"
)

// interrupted stores a pending record as if the process died right after
// writing it.
func interrupted(t *testing.T, f *fixture, flow models.Flow, counterpartyID string, previous, amount string, itemIDs, advanceIDs []string) models.SettlementRecord {
	t.Helper()
	rec := models.SettlementRecord{
		Flow:              flow,
		OwnerID:           testutil.Owner,
		CounterpartyID:    counterpartyID,
		Amount:            dec(amount),
		PaymentMethod:     "cash",
		Date:              testutil.Day("2024-03-31"),
		PreviousBalance:   dec(previous),
		NetPayable:        dec(previous),
		ClosingBalance:    dec(previous).Sub(dec(amount)),
		SettledItemIDs:    itemIDs,
		SettledAdvanceIDs: advanceIDs,
		Status:            models.SettlementPending,
	}
	require.NoError(t, f.store.InsertSettlement(context.Background(), &rec))
	return rec
}

func TestReplayFinishesPendingSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "100", "50")
	item := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-02", "2", "50")

	rec := interrupted(t, f, models.FlowMember, member.ID, "200", "150", []string{item.ID}, nil)

	pending, err := f.member.Pending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ID, pending[0].ID)

	none, err := f.member.Pending(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	result, err := f.member.Replay(ctx, pending[0])
	require.NoError(t, err)
	assert.Equal(t, ReplayCommitted, result)

	paid, err := f.store.GetLineItem(ctx, models.FlowMember, testutil.Owner, item.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "50", loaded.SellingPaymentBalance.Decimal)
	assert.Equal(t, rec.ID, loaded.LastSettlementID)

	stored, err := f.member.Get(ctx, testutil.Owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCommitted, stored.Status)
	require.Len(t, f.events.events, 1)

	again, err := f.member.Replay(ctx, pending[0])
	require.NoError(t, err)
	assert.Equal(t, ReplaySkipped, again)
	assert.Len(t, f.events.events, 1)
}

func TestReplayFarmerSettlesAdvances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	farmer := testutil.SeedFarmer(t, f.store, "0", "40")
	deducted := testutil.SeedAdvance(t, f.store, farmer.ID, "300")
	later := testutil.SeedAdvance(t, f.store, farmer.ID, "40")

	rec := interrupted(t, f, models.FlowFarmer, farmer.ID, "500", "500", nil, []string{deducted.ID})

	result, err := f.farmer.Replay(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ReplayCommitted, result)

	settled, err := f.store.GetAdvance(ctx, testutil.Owner, deducted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceSettled, settled.Status)

	open, err := f.store.GetAdvance(ctx, testutil.Owner, later.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvancePending, open.Status)

	loaded, err := f.store.GetFarmer(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assertDec(t, "40", loaded.PendingAmount)
	assert.True(t, loaded.CurrentBalance.IsZero())
}

func TestReplayAbandonsSupersededRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "100", "50")

	stale := interrupted(t, f, models.FlowMember, member.ID, "100", "30", nil, nil)
	time.Sleep(5 * time.Millisecond)
	newer := models.SettlementRecord{
		Flow:            models.FlowMember,
		OwnerID:         testutil.Owner,
		CounterpartyID:  member.ID,
		Amount:          dec("10"),
		Date:            testutil.Day("2024-04-01"),
		PreviousBalance: dec("100"),
		NetPayable:      dec("100"),
		ClosingBalance:  dec("90"),
		Status:          models.SettlementCommitted,
	}
	require.NoError(t, f.store.InsertSettlement(ctx, &newer))

	result, err := f.member.Replay(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, ReplayAbandoned, result)

	stored, err := f.member.Get(ctx, testutil.Owner, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementFailed, stored.Status)

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "100", loaded.SellingPaymentBalance.Decimal)
}

func TestSettleReplaysInterruptedSettlementFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "200", "50")
	first := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-01", "10", "50")
	second := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-02", "5", "50")

	// The process died after flagging the item but before the balance write.
	stale := models.SettlementRecord{
		Flow:                models.FlowMember,
		OwnerID:             testutil.Owner,
		CounterpartyID:      member.ID,
		Amount:              dec("100"),
		Date:                testutil.Day("2024-03-01"),
		PreviousBalance:     dec("200"),
		ComputedPeriodTotal: dec("500"),
		PeriodTotal:         dec("500"),
		NetPayable:          dec("700"),
		ClosingBalance:      dec("600"),
		SettledItemIDs:      []string{first.ID},
		Status:              models.SettlementPending,
	}
	require.NoError(t, f.store.InsertSettlement(ctx, &stale))
	_, err := f.store.MarkLineItemsPaid(ctx, models.FlowMember, testutil.Owner, member.ID, []string{first.ID}, stale.ID)
	require.NoError(t, err)

	rec, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("10")})
	require.NoError(t, err)
	assertDec(t, "600", rec.PreviousBalance)
	assertDec(t, "250", rec.PeriodTotal)
	assertDec(t, "840", rec.ClosingBalance)
	assert.Equal(t, []string{second.ID}, rec.SettledItemIDs)

	replayed, err := f.member.Get(ctx, testutil.Owner, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCommitted, replayed.Status)

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "840", loaded.SellingPaymentBalance.Decimal)
	assert.Equal(t, rec.ID, loaded.LastSettlementID)
	assert.Len(t, f.events.events, 2)
}
