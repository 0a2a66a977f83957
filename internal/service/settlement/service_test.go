package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/repository"
	"github.com/mamadbah2/dairy/internal/repository/sqlstore"
	"github.com/mamadbah2/dairy/internal/service/notify"
	"github.com/mamadbah2/dairy/internal/testutil"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notify.SettlementCompleted
}

func (c *capturePublisher) Publish(_ context.Context, event notify.SettlementCompleted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

type fixture struct {
	store  *sqlstore.Store
	farmer *Service
	member *Service
	events *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, raw *sqlstore.Store, store repository.Store) *fixture {
	t.Helper()
	events := &capturePublisher{}
	deps := Deps{
		Store:     store,
		Locker:    lock.NewLocal(),
		Publisher: events,
		Location:  time.UTC,
		Logger:    zaptest.NewLogger(t),
	}
	return &fixture{
		store:  raw,
		farmer: NewFarmerService(decimal.Zero, deps),
		member: NewMemberService(decimal.NewFromInt(1), deps),
		events: events,
	}
}

func dec(s string) decimal.Decimal { return testutil.Dec(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func period(start, end string) models.DateRange {
	return models.DateRange{Start: testutil.DayPtr(start), End: testutil.DayPtr(end)}
}

func TestMemberScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "200", "50")
	a := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-02", "10", "50")
	b := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-05", "5", "50")

	rec, err := f.member.Settle(ctx, Request{
		OwnerID:        testutil.Owner,
		CounterpartyID: member.ID,
		Amount:         dec("600"),
		PaymentMethod:  "cash",
		Period:         period("2024-03-01", "2024-03-31"),
	})
	require.NoError(t, err)

	assertDec(t, "200", rec.PreviousBalance)
	assertDec(t, "750", rec.PeriodTotal)
	assertDec(t, "15", rec.PeriodQuantity)
	assertDec(t, "950", rec.NetPayable)
	assertDec(t, "350", rec.ClosingBalance)
	assert.Equal(t, models.SettlementCommitted, rec.Status)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, rec.SettledItemIDs)

	for _, id := range []string{a.ID, b.ID} {
		item, err := f.store.GetLineItem(ctx, models.FlowMember, testutil.Owner, id)
		require.NoError(t, err)
		assert.True(t, item.IsPaid)
		assert.Equal(t, rec.ID, item.SettlementID)
	}

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "350", loaded.SellingPaymentBalance.Decimal)
	assert.Equal(t, rec.ID, loaded.LastSettlementID)

	stored, err := f.member.Get(ctx, testutil.Owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCommitted, stored.Status)
	assertDec(t, "350", stored.ClosingBalance)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, rec.ID, f.events.events[0].SettlementID)
	assertDec(t, "600", f.events.events[0].Amount)
}

func TestFarmerScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	farmer := testutil.SeedFarmer(t, f.store, "-100", "40")
	testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-01-03", "30", "40")
	testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-01-04", "20", "40")
	advance := testutil.SeedAdvance(t, f.store, farmer.ID, "300")

	rec, err := f.farmer.Settle(ctx, Request{
		OwnerID:        testutil.Owner,
		CounterpartyID: farmer.ID,
		Amount:         dec("1500"),
		PaymentMethod:  "cash",
		Period:         period("2024-01-01", "2024-01-10"),
	})
	require.NoError(t, err)

	assertDec(t, "2000", rec.PeriodTotal)
	assertDec(t, "300", rec.AdvanceDeduction)
	assertDec(t, "1600", rec.NetPayable)
	assertDec(t, "100", rec.ClosingBalance)
	assert.Equal(t, []string{advance.ID}, rec.SettledAdvanceIDs)

	settled, err := f.store.GetAdvance(ctx, testutil.Owner, advance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdvanceSettled, settled.Status)
	assertDec(t, "300", settled.SettledAmount)

	loaded, err := f.store.GetFarmer(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assertDec(t, "100", loaded.CurrentBalance.Decimal)
	assert.True(t, loaded.PendingAmount.IsZero())
}

func TestBalanceCarryForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "420", "50")

	rec, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("120")})
	require.NoError(t, err)

	assert.Empty(t, rec.SettledItemIDs)
	assert.True(t, rec.PeriodTotal.IsZero())
	assert.False(t, rec.HasPeriod())
	assertDec(t, "300", rec.ClosingBalance)

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "300", loaded.SellingPaymentBalance.Decimal)
}

func TestPeriodConsumesOnlyItemsInRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	farmer := testutil.SeedFarmer(t, f.store, "0", "40")
	before := testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-01-31", "1", "40")
	first := testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-02-01", "2", "40")
	last := testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-02-10", "3", "40")
	after := testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-02-11", "4", "40")

	rec, err := f.farmer.Settle(ctx, Request{
		OwnerID:        testutil.Owner,
		CounterpartyID: farmer.ID,
		Amount:         dec("200"),
		Period:         period("2024-02-01", "2024-02-10"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{first.ID, last.ID}, rec.SettledItemIDs)
	assertDec(t, "200", rec.PeriodTotal)

	for id, paid := range map[string]bool{before.ID: false, first.ID: true, last.ID: true, after.ID: false} {
		item, err := f.store.GetLineItem(ctx, models.FlowFarmer, testutil.Owner, id)
		require.NoError(t, err)
		assert.Equal(t, paid, item.IsPaid, id)
	}
}

func TestFarmerOverlapRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	farmer := testutil.SeedFarmer(t, f.store, "0", "40")

	_, err := f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("0"), Period: period("2024-01-01", "2024-01-10")})
	require.NoError(t, err)

	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("0"), Period: period("2024-01-05", "2024-01-15")})
	require.ErrorIs(t, err, models.ErrPeriodConflict)
	var conflict *models.PeriodConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Contains(t, err.Error(), "2024-01-01 to 2024-01-10")

	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("0"), Period: period("2024-01-10", "2024-01-12")})
	assert.ErrorIs(t, err, models.ErrPeriodConflict, "closed interval: shared boundary day conflicts")

	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("0"), Period: period("2024-01-11", "2024-01-20")})
	require.NoError(t, err)

	records, err := f.farmer.List(ctx, testutil.Owner, farmer.ID, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMemberFlowDoesNotCheckOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "0", "50")

	_, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("5"), Period: period("2024-01-01", "2024-01-10")})
	require.NoError(t, err)
	_, err = f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("5"), Period: period("2024-01-05", "2024-01-15")})
	assert.NoError(t, err)
}

func TestPreviewIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	farmer := testutil.SeedFarmer(t, f.store, "50", "40")
	testutil.SeedItem(t, f.store, models.FlowFarmer, farmer.ID, "2024-01-03", "10", "40")
	testutil.SeedAdvance(t, f.store, farmer.ID, "75")

	first, err := f.farmer.Preview(ctx, testutil.Owner, farmer.ID, period("2024-01-01", "2024-01-31"), nil)
	require.NoError(t, err)
	second, err := f.farmer.Preview(ctx, testutil.Owner, farmer.ID, period("2024-01-01", "2024-01-31"), nil)
	require.NoError(t, err)

	assertDec(t, "400", first.PeriodTotal)
	assertDec(t, "375", first.NetPayable)
	assert.True(t, first.NetPayable.Equal(first.ClosingBalance))
	assert.True(t, first.PeriodTotal.Equal(second.PeriodTotal))
	assert.True(t, first.NetPayable.Equal(second.NetPayable))

	loaded, err := f.store.GetFarmer(ctx, testutil.Owner, farmer.ID)
	require.NoError(t, err)
	assertDec(t, "50", loaded.CurrentBalance.Decimal)
	assertDec(t, "75", loaded.PendingAmount)
}

func TestNegativeClosingBalanceIsKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "100", "50")

	rec, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("250")})
	require.NoError(t, err)
	assertDec(t, "-150", rec.ClosingBalance)

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "-150", loaded.SellingPaymentBalance.Decimal)
}

func TestManualPeriodTotalOverridesMathOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "0", "50")
	item := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-02", "10", "50")

	rec, err := f.member.Settle(ctx, Request{
		OwnerID:           testutil.Owner,
		CounterpartyID:    member.ID,
		Amount:            dec("400"),
		ManualPeriodTotal: decPtr("450"),
	})
	require.NoError(t, err)

	assert.True(t, rec.ManualOverride)
	assertDec(t, "450", rec.PeriodTotal)
	assertDec(t, "500", rec.ComputedPeriodTotal)
	assertDec(t, "50", rec.ClosingBalance)
	assert.Equal(t, []string{item.ID}, rec.SettledItemIDs)
}

func TestExplicitItemSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "0", "50")
	picked := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-02", "1", "50")
	left := testutil.SeedItem(t, f.store, models.FlowMember, member.ID, "2024-03-03", "2", "50")

	rec, err := f.member.Settle(ctx, Request{
		OwnerID:        testutil.Owner,
		CounterpartyID: member.ID,
		Amount:         dec("50"),
		Period:         period("2024-03-01", "2024-03-31"),
		ItemIDs:        []string{picked.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{picked.ID}, rec.SettledItemIDs)

	remaining, err := f.store.GetLineItem(ctx, models.FlowMember, testutil.Owner, left.ID)
	require.NoError(t, err)
	assert.False(t, remaining.IsPaid)

	_, err = f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("50"), ItemIDs: []string{picked.ID}})
	assert.ErrorIs(t, err, models.ErrNotFound)

	farmer := testutil.SeedFarmer(t, f.store, "0", "40")
	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("1"), ItemIDs: []string{"x"}})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestAmountValidationPerFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "0", "50")
	farmer := testutil.SeedFarmer(t, f.store, "0", "40")

	_, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("0.5")})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("1")})
	assert.NoError(t, err)

	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("-1")})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = f.farmer.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: farmer.ID, Amount: dec("0")})
	assert.NoError(t, err)
}

func TestRejectionsLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "10", "50")

	_, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: "missing", Amount: dec("5")})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.member.Settle(ctx, Request{OwnerID: "other-owner", CounterpartyID: member.ID, Amount: dec("5")})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("5"), Period: period("2024-02-01", "2024-01-01")})
	assert.ErrorIs(t, err, models.ErrInvalidPeriod)

	require.NoError(t, f.store.SetActive(ctx, models.FlowMember, testutil.Owner, member.ID, false))
	_, err = f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("5")})
	assert.ErrorIs(t, err, models.ErrNotFound)

	records, err := f.member.List(ctx, testutil.Owner, member.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.events.events)
}

type failingWriter struct {
	repository.Writer
}

func (failingWriter) SetMemberBalance(context.Context, string, string, int64, models.MemberLedgerBalance, string) error {
	return errors.New("disk full")
}

type failingStore struct {
	repository.Store
}

func (s failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Writer) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		return fn(ctx, failingWriter{Writer: tx})
	})
}

func TestFailedCommitRollsBack(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	f := newFixtureWithStore(t, store, failingStore{Store: store})
	member := testutil.SeedMember(t, store, "100", "50")
	item := testutil.SeedItem(t, store, models.FlowMember, member.ID, "2024-03-02", "1", "50")

	_, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("20")})
	require.ErrorIs(t, err, models.ErrPersistence)

	loaded, err := store.GetLineItem(ctx, models.FlowMember, testutil.Owner, item.ID)
	require.NoError(t, err)
	assert.False(t, loaded.IsPaid)

	records, err := store.FindSettlements(ctx, models.SettlementQuery{Flow: models.FlowMember, OwnerID: testutil.Owner})
	require.NoError(t, err)
	assert.Empty(t, records)

	m, err := store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "100", m.SellingPaymentBalance.Decimal)
	assert.Empty(t, f.events.events)
}

func TestConcurrentSettlementsChainBalances(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := testutil.SeedMember(t, f.store, "1000", "50")

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.member.Settle(ctx, Request{OwnerID: testutil.Owner, CounterpartyID: member.ID, Amount: dec("10")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := f.store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assertDec(t, "920", loaded.SellingPaymentBalance.Decimal)

	records, err := f.member.List(ctx, testutil.Owner, member.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, workers)

	previous := map[string]bool{}
	for _, rec := range records {
		key := rec.PreviousBalance.String()
		assert.False(t, previous[key], "two settlements read the same previous balance %s", key)
		previous[key] = true
		assert.True(t, rec.PreviousBalance.Sub(dec("10")).Equal(rec.ClosingBalance))
	}
}

func TestStaleVersionIsRejected(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "0", "50")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Writer) error {
		return tx.SetMemberBalance(ctx, testutil.Owner, member.ID, member.Version+1, models.NewMemberLedgerBalance(dec("5")), "s")
	})
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)
}
