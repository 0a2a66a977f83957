package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, s string, loc *time.Location) *time.Time {
	t.Helper()
	d, err := ParseDay(s, loc)
	require.NoError(t, err)
	return &d
}

func TestWindowResolvesWholeDaysInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	w, err := DateRange{Start: mustDay(t, "2024-01-01", loc), End: mustDay(t, "2024-01-10", loc)}.Window(loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 12, 31, 21, 0, 0, 0, time.UTC), *w.From)
	assert.Equal(t, time.Date(2024, 1, 10, 20, 59, 59, int(999*time.Millisecond), time.UTC), *w.To)
}

func TestWindowRejectsInvertedRange(t *testing.T) {
	_, err := DateRange{Start: mustDay(t, "2024-02-01", nil), End: mustDay(t, "2024-01-01", nil)}.Window(nil)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = ParseDay("2024-13-01", nil)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestOverlapsIsClosedInterval(t *testing.T) {
	window := func(a, b string) Window {
		w, err := DateRange{Start: mustDay(t, a, nil), End: mustDay(t, b, nil)}.Window(nil)
		require.NoError(t, err)
		return w
	}
	settled := window("2024-01-01", "2024-01-10")

	assert.True(t, window("2024-01-05", "2024-01-15").Overlaps(settled))
	assert.True(t, window("2024-01-10", "2024-01-12").Overlaps(settled))
	assert.True(t, window("2023-12-01", "2024-02-01").Overlaps(settled))
	assert.False(t, window("2024-01-11", "2024-01-20").Overlaps(settled))
	assert.False(t, Window{From: settled.From}.Overlaps(settled), "open windows never overlap")
}

func TestPeriodConflictError(t *testing.T) {
	start, end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	err := error(&PeriodConflictError{Conflicts: []ConflictingPeriod{{SettlementID: "s1", Start: start, End: end}}})

	assert.True(t, errors.Is(err, ErrPeriodConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "2024-01-01 to 2024-01-10")
}

func TestAdvanceRemaining(t *testing.T) {
	a := Advance{Amount: decimal.NewFromInt(300), SettledAmount: decimal.NewFromInt(120), Status: AdvancePartial}
	assert.Equal(t, "180", a.Remaining().String())
	assert.True(t, a.Outstanding())

	a.Status = AdvanceSettled
	assert.False(t, a.Outstanding())
}
