package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository"
	"github.com/mamadbah2/dairy/internal/testutil"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "10", "50")

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		require.NoError(t, tx.AdjustBalance(ctx, models.FlowMember, testutil.Owner, member.ID, testutil.Dec("5")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	loaded, err := store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assert.True(t, testutil.Dec("10").Equal(loaded.SellingPaymentBalance.Decimal))
	assert.True(t, store.Transactional())
}

func TestSetBalanceComparesVersion(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0", "40")

	require.NoError(t, store.SetFarmerBalance(ctx, testutil.Owner, farmer.ID, farmer.Version, models.NewFarmerLedgerBalance(testutil.Dec("25")), "s1"))

	err := store.SetFarmerBalance(ctx, testutil.Owner, farmer.ID, farmer.Version, models.NewFarmerLedgerBalance(testutil.Dec("30")), "s2")
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)

	err = store.SetFarmerBalance(ctx, "other", farmer.ID, farmer.Version+1, models.NewFarmerLedgerBalance(testutil.Dec("30")), "s2")
	assert.ErrorIs(t, err, models.ErrNotFound)

	loaded, err := store.GetFarmer(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assert.True(t, testutil.Dec("25").Equal(loaded.CurrentBalance.Decimal))
	assert.Equal(t, farmer.Version+1, loaded.Version)
	assert.Equal(t, "s1", loaded.LastSettlementID)
}

func TestMarkLineItemsPaidSkipsPaidItems(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")
	a := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-03-01", "1", "50")
	b := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-03-02", "1", "50")

	n, err := store.MarkLineItemsPaid(ctx, models.FlowMember, testutil.Owner, member.ID, []string{a.ID}, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.MarkLineItemsPaid(ctx, models.FlowMember, testutil.Owner, member.ID, []string{a.ID, b.ID}, "s2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	first, err := store.GetLineItem(ctx, models.FlowMember, testutil.Owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", first.SettlementID)

	first.Quantity = testutil.Dec("2")
	assert.ErrorIs(t, store.UpdateLineItem(ctx, first), models.ErrItemSettled)
	assert.ErrorIs(t, store.DeleteLineItem(ctx, models.FlowMember, testutil.Owner, a.ID), models.ErrItemSettled)
}

func TestFindLineItemsWindow(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0", "40")
	testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-31", "1", "40")
	in := testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-02-01", "1", "40")

	w, err := models.DateRange{Start: testutil.DayPtr("2024-02-01"), End: testutil.DayPtr("2024-02-29")}.Window(time.UTC)
	require.NoError(t, err)
	items, err := store.FindLineItems(ctx, models.LineItemQuery{
		Flow: models.FlowFarmer, OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Window: w,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, in.ID, items[0].ID)

	none, err := store.FindLineItems(ctx, models.LineItemQuery{Flow: models.FlowMember, OwnerID: testutil.Owner, CounterpartyID: farmer.ID})
	require.NoError(t, err)
	assert.Empty(t, none, "flows never mix")
}

func TestFindSettlementsFilters(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")

	insert := func(status models.SettlementStatus, withPeriod bool) models.SettlementRecord {
		rec := models.SettlementRecord{
			Flow: models.FlowMember, OwnerID: testutil.Owner, CounterpartyID: member.ID,
			Date: testutil.Day("2024-03-01"), Status: status,
		}
		if withPeriod {
			rec.PeriodStart, rec.PeriodEnd = testutil.DayPtr("2024-03-01"), testutil.DayPtr("2024-03-31")
		}
		require.NoError(t, store.InsertSettlement(ctx, &rec))
		time.Sleep(2 * time.Millisecond)
		return rec
	}
	older := insert(models.SettlementCommitted, true)
	pending := insert(models.SettlementPending, false)
	newest := insert(models.SettlementCommitted, true)

	all, err := store.FindSettlements(ctx, models.SettlementQuery{Flow: models.FlowMember, OwnerID: testutil.Owner})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID)

	periods, err := store.FindSettlements(ctx, models.SettlementQuery{Flow: models.FlowMember, OwnerID: testutil.Owner, WithPeriodOnly: true, ExcludeID: newest.ID})
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, older.ID, periods[0].ID)

	cutoff := time.Now().Add(time.Minute)
	stuck, err := store.FindSettlements(ctx, models.SettlementQuery{Flow: models.FlowMember, Status: models.SettlementPending, CreatedBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, pending.ID, stuck[0].ID)

	latest, err := store.FindSettlements(ctx, models.SettlementQuery{Flow: models.FlowMember, OwnerID: testutil.Owner, Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, newest.ID, latest[0].ID)
}

func TestIncrementsKeepDecimalPrecision(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0.3", "40")

	require.NoError(t, store.AddTotals(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, testutil.Dec("0.1"), testutil.Dec("0.1")))
	require.NoError(t, store.AddTotals(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, testutil.Dec("0.2"), testutil.Dec("0.2")))
	require.NoError(t, store.AdjustBalance(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, testutil.Dec("-1.1")))
	require.NoError(t, store.AddFarmerPending(ctx, testutil.Owner, farmer.ID, testutil.Dec("0.7")))
	require.NoError(t, store.AddFarmerPending(ctx, testutil.Owner, farmer.ID, testutil.Dec("0.1")))

	loaded, err := store.GetFarmer(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.3", loaded.TotalQuantity.String())
	assert.Equal(t, "0.3", loaded.TotalAmount.String())
	assert.Equal(t, "-0.8", loaded.CurrentBalance.String())
	assert.Equal(t, "0.8", loaded.PendingAmount.String())
	assert.Equal(t, farmer.Version+1, loaded.Version)

	err = store.AdjustBalance(ctx, models.FlowMember, testutil.Owner, "missing", testutil.Dec("1"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}
