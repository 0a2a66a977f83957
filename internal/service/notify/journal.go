package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository/sheets"
)

// SheetJournal appends one row per settlement to a spreadsheet so the owner
// keeps a human readable payment book.
type SheetJournal struct {
	repo       sheets.Repository
	sheetRange string
	loc        *time.Location
}

// NewSheetJournal writes rows to sheetRange, e.g. "Settlements!A:J".
func NewSheetJournal(repo sheets.Repository, sheetRange string, loc *time.Location) *SheetJournal {
	if loc == nil {
		loc = time.UTC
	}
	return &SheetJournal{repo: repo, sheetRange: sheetRange, loc: loc}
}

// Name implements Notifier.
func (j *SheetJournal) Name() string { return "sheets" }

// Notify implements Notifier. A settlement already present in the first
// column is not appended again.
func (j *SheetJournal) Notify(ctx context.Context, event SettlementCompleted) error {
	rows, err := j.repo.ReadRange(ctx, idColumn(j.sheetRange))
	if err != nil {
		return fmt.Errorf("read journal ids: %w", err)
	}
	for _, row := range rows {
		if len(row) > 0 && fmt.Sprint(row[0]) == event.SettlementID {
			return nil
		}
	}

	periodEnd := ""
	if event.PeriodEnd != nil {
		periodEnd = event.PeriodEnd.In(j.loc).Format(models.DayLayout)
	}
	return j.repo.WriteRow(ctx, j.sheetRange, []interface{}{
		event.SettlementID,
		event.Date.In(j.loc).Format(models.DayLayout),
		event.OwnerID,
		event.Flow.String(),
		event.CounterpartyID,
		event.CounterpartyName,
		event.Amount.String(),
		event.PaymentMethod,
		periodEnd,
		event.ClosingBalance.String(),
	})
}

// idColumn narrows "Sheet!A:J" to "Sheet!A:A".
func idColumn(sheetRange string) string {
	sheet, cells, found := strings.Cut(sheetRange, "!")
	if !found {
		return "A:A"
	}
	first, _, _ := strings.Cut(cells, ":")
	col := strings.TrimRight(first, "0123456789")
	if col == "" {
		col = "A"
	}
	return fmt.Sprintf("%s!%s:%s", sheet, col, col)
}
