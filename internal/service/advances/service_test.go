package advances

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/repository/sqlstore"
	"github.com/mamadbah2/dairy/internal/testutil"
)

func setup(t *testing.T) (*Service, *sqlstore.Store, *models.Farmer) {
	t.Helper()
	store := testutil.NewStore(t)
	farmer := testutil.SeedFarmer(t, store, "0", "40")
	return NewService(store, lock.NewLocal(), nil, zaptest.NewLogger(t)), store, farmer
}

func pendingOf(t *testing.T, store *sqlstore.Store, farmerID string) decimal.Decimal {
	t.Helper()
	farmer, err := store.GetFarmer(context.Background(), testutil.Owner, farmerID)
	require.NoError(t, err)
	return farmer.PendingAmount
}

func amount(s string) *decimal.Decimal {
	d := testutil.Dec(s)
	return &d
}

func TestAddRaisesPending(t *testing.T) {
	ctx := context.Background()
	svc, store, farmer := setup(t)

	advance, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("250"), Note: "seed money"})
	require.NoError(t, err)
	assert.Equal(t, models.AdvancePending, advance.Status)
	assert.True(t, advance.SettledAmount.IsZero())
	assert.True(t, testutil.Dec("250").Equal(pendingOf(t, store, farmer.ID)))

	_, err = svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: decimal.Zero})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Add(ctx, testutil.Owner, "missing", Input{Amount: testutil.Dec("1")})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSettlePartialThenFull(t *testing.T) {
	ctx := context.Background()
	svc, store, farmer := setup(t)
	advance, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("300")})
	require.NoError(t, err)

	partial, err := svc.Settle(ctx, testutil.Owner, advance.ID, amount("100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdvancePartial, partial.Status)
	assert.True(t, testutil.Dec("100").Equal(partial.SettledAmount))
	assert.True(t, testutil.Dec("200").Equal(pendingOf(t, store, farmer.ID)))

	full, err := svc.Settle(ctx, testutil.Owner, advance.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceSettled, full.Status)
	assert.True(t, testutil.Dec("300").Equal(full.SettledAmount))
	assert.True(t, pendingOf(t, store, farmer.ID).IsZero())

	_, err = svc.Settle(ctx, testutil.Owner, advance.ID, nil)
	assert.ErrorIs(t, err, models.ErrItemSettled)
}

func TestSettleCannotExceedAmount(t *testing.T) {
	ctx := context.Background()
	svc, store, farmer := setup(t)
	advance, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("100")})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, testutil.Owner, advance.ID, amount("150"))
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Settle(ctx, testutil.Owner, advance.ID, amount("-5"))
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	loaded, err := store.GetAdvance(ctx, testutil.Owner, advance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvancePending, loaded.Status)
	assert.True(t, testutil.Dec("100").Equal(pendingOf(t, store, farmer.ID)))
}

func TestSettleFloorsPendingAtZero(t *testing.T) {
	ctx := context.Background()
	svc, store, farmer := setup(t)
	advance, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("100")})
	require.NoError(t, err)
	require.NoError(t, store.SetFarmerPending(ctx, testutil.Owner, farmer.ID, testutil.Dec("40")))

	_, err = svc.Settle(ctx, testutil.Owner, advance.ID, nil)
	require.NoError(t, err)
	assert.True(t, pendingOf(t, store, farmer.ID).IsZero())
}

func TestDeleteReversesOnlyPendingAdvances(t *testing.T) {
	ctx := context.Background()
	svc, store, farmer := setup(t)
	untouched, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("100")})
	require.NoError(t, err)
	partial, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("200")})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, testutil.Owner, partial.ID, amount("50"))
	require.NoError(t, err)
	require.True(t, testutil.Dec("250").Equal(pendingOf(t, store, farmer.ID)))

	require.NoError(t, svc.Delete(ctx, testutil.Owner, untouched.ID))
	assert.True(t, testutil.Dec("150").Equal(pendingOf(t, store, farmer.ID)))

	require.NoError(t, svc.Delete(ctx, testutil.Owner, partial.ID))
	assert.True(t, testutil.Dec("150").Equal(pendingOf(t, store, farmer.ID)))

	_, err = store.GetAdvance(ctx, testutil.Owner, partial.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteRejectsSettledAdvance(t *testing.T) {
	ctx := context.Background()
	svc, _, farmer := setup(t)
	advance, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("100")})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, testutil.Owner, advance.ID, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, testutil.Owner, advance.ID), models.ErrItemSettled)
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, farmer := setup(t)
	first, err := svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("10")})
	require.NoError(t, err)
	_, err = svc.Add(ctx, testutil.Owner, farmer.ID, Input{Amount: testutil.Dec("20")})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, testutil.Owner, first.ID, nil)
	require.NoError(t, err)

	all, err := svc.List(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := svc.List(ctx, testutil.Owner, farmer.ID, models.AdvancePending, models.AdvancePartial)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, testutil.Dec("20").Equal(open[0].Amount))

	_, err = svc.List(ctx, "other", farmer.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
