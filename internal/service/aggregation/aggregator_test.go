package aggregation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/testutil"
)

func TestAggregateUnpaidWindow(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0", "40")

	testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-01", "10", "40")
	inside := testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-05", "5", "42.5")
	last := testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-10", "2", "40")
	testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-11", "7", "40")

	w, err := models.DateRange{Start: testutil.DayPtr("2024-01-05"), End: testutil.DayPtr("2024-01-10")}.Window(nil)
	require.NoError(t, err)

	period, err := New(store).AggregateUnpaid(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, w)
	require.NoError(t, err)

	assert.Equal(t, []string{inside.ID, last.ID}, period.ItemIDs())
	assert.True(t, testutil.Dec("7").Equal(period.TotalQuantity))
	assert.True(t, testutil.Dec("292.5").Equal(period.TotalAmount), period.TotalAmount.String())
}

func TestAggregateUnpaidUsesPersistedAmount(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")

	item := models.LineItem{
		Flow:           models.FlowMember,
		OwnerID:        testutil.Owner,
		CounterpartyID: member.ID,
		Date:           testutil.Day("2024-02-01"),
		Quantity:       testutil.Dec("10"),
		Rate:           testutil.Dec("50"),
		Amount:         testutil.Dec("480"),
	}
	require.NoError(t, store.InsertLineItem(ctx, &item))

	period, err := New(store).AggregateUnpaid(ctx, models.FlowMember, testutil.Owner, member.ID, models.Window{})
	require.NoError(t, err)
	assert.True(t, testutil.Dec("480").Equal(period.TotalAmount))
}

func TestAggregateUnpaidSkipsPaidAndOtherOwners(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")

	paid := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-02-01", "1", "50")
	open := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-02-02", "2", "50")
	n, err := store.MarkLineItemsPaid(ctx, models.FlowMember, testutil.Owner, member.ID, []string{paid.ID}, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	period, err := New(store).AggregateUnpaid(ctx, models.FlowMember, testutil.Owner, member.ID, models.Window{})
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID}, period.ItemIDs())

	other, err := New(store).AggregateUnpaid(ctx, models.FlowMember, "someone-else", member.ID, models.Window{})
	require.NoError(t, err)
	assert.Empty(t, other.Items)
	assert.True(t, other.TotalAmount.IsZero())
}

func TestAggregateUnpaidIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "10", "40")
	testutil.SeedItem(t, store, models.FlowFarmer, farmer.ID, "2024-01-01", "1", "40")

	agg := New(store)
	first, err := agg.AggregateUnpaid(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, models.Window{})
	require.NoError(t, err)
	second, err := agg.AggregateUnpaid(ctx, models.FlowFarmer, testutil.Owner, farmer.ID, models.Window{})
	require.NoError(t, err)

	assert.Equal(t, first.ItemIDs(), second.ItemIDs())
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
}

func TestItemsByID(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")
	a := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-02-01", "1", "50")
	b := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-02-02", "2", "50")
	testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-02-03", "3", "50")

	period, err := New(store).ItemsByID(ctx, models.FlowMember, testutil.Owner, member.ID, []string{b.ID, a.ID, a.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, period.ItemIDs())
	assert.True(t, testutil.Dec("150").Equal(period.TotalAmount))

	_, err = New(store).ItemsByID(ctx, models.FlowMember, testutil.Owner, member.ID, []string{a.ID, "missing"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPendingAdvancesIgnoresPeriod(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0", "40")

	first := testutil.SeedAdvance(t, store, farmer.ID, "300")
	partial := testutil.SeedAdvance(t, store, farmer.ID, "200")
	partial.SettledAmount = testutil.Dec("50")
	partial.Status = models.AdvancePartial
	require.NoError(t, store.UpdateAdvance(ctx, &partial))

	settled := testutil.SeedAdvance(t, store, farmer.ID, "75")
	_, err := store.SettleAdvances(ctx, testutil.Owner, farmer.ID, []string{settled.ID}, "s0")
	require.NoError(t, err)

	d, err := New(store).PendingAdvances(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, partial.ID}, d.AdvanceIDs())
	assert.True(t, testutil.Dec("450").Equal(d.Total), d.Total.String())
}
