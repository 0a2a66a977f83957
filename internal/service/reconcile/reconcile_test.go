package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/lock"
	"github.com/mamadbah2/dairy/internal/service/settlement"
	"github.com/mamadbah2/dairy/internal/testutil"
)

type fakeReplayer struct {
	flow     models.Flow
	records  []models.SettlementRecord
	results  map[string]settlement.ReplayResult
	failures map[string]error
	cutoff   time.Time
}

func (f *fakeReplayer) Flow() models.Flow { return f.flow }

func (f *fakeReplayer) Pending(_ context.Context, cutoff time.Time, _ int) ([]models.SettlementRecord, error) {
	f.cutoff = cutoff
	return f.records, nil
}

func (f *fakeReplayer) Replay(_ context.Context, record models.SettlementRecord) (settlement.ReplayResult, error) {
	if err := f.failures[record.ID]; err != nil {
		return "", err
	}
	return f.results[record.ID], nil
}

func TestRunCountsOutcomesAndKeepsGoing(t *testing.T) {
	fake := &fakeReplayer{
		flow:    models.FlowMember,
		records: []models.SettlementRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		results: map[string]settlement.ReplayResult{
			"a": settlement.ReplayCommitted,
			"b": settlement.ReplayAbandoned,
			"d": settlement.ReplaySkipped,
		},
		failures: map[string]error{"c": errors.New("store down")},
	}
	job := NewJob(2*time.Minute, zaptest.NewLogger(t), fake)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	report, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settlement c")
	assert.Equal(t, Report{Scanned: 4, Committed: 1, Abandoned: 1, Skipped: 1, Failed: 1}, report)
	assert.Equal(t, now.Add(-2*time.Minute), fake.cutoff)
}

func TestRunReplaysStoredPendingRecords(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	member := testutil.SeedMember(t, store, "80", "50")
	svc := settlement.NewMemberService(decimal.NewFromInt(1), settlement.Deps{
		Store:  store,
		Locker: lock.NewLocal(),
		Logger: zaptest.NewLogger(t),
	})

	record := models.SettlementRecord{
		Flow:            models.FlowMember,
		OwnerID:         testutil.Owner,
		CounterpartyID:  member.ID,
		Amount:          testutil.Dec("30"),
		Date:            testutil.Day("2024-03-01"),
		PreviousBalance: testutil.Dec("80"),
		NetPayable:      testutil.Dec("80"),
		ClosingBalance:  testutil.Dec("50"),
		Status:          models.SettlementPending,
	}
	require.NoError(t, store.InsertSettlement(ctx, &record))

	job := NewJob(0, zaptest.NewLogger(t), svc)
	job.now = func() time.Time { return time.Now().Add(time.Second) }
	report, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)

	loaded, err := store.GetMember(ctx, testutil.Owner, member.ID)
	require.NoError(t, err)
	assert.True(t, testutil.Dec("50").Equal(loaded.SellingPaymentBalance.Decimal))

	again, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}
