package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetSettlement loads one settlement record of the owner.
func (s *Store) GetSettlement(ctx context.Context, flow models.Flow, ownerID, settlementID string) (*models.SettlementRecord, error) {
	var row settlementRow
	if err := s.conn(ctx).Where("id = ? AND flow = ? AND owner_id = ?", settlementID, string(flow), ownerID).First(&row).Error; err != nil {
		return nil, notFound("settlement", settlementID, err)
	}
	record := row.toModel()
	return &record, nil
}

// FindSettlements returns the records matching q, newest first.
func (s *Store) FindSettlements(ctx context.Context, q models.SettlementQuery) ([]models.SettlementRecord, error) {
	tx := s.conn(ctx).Where("flow = ?", string(q.Flow))
	if q.OwnerID != "" {
		tx = tx.Where("owner_id = ?", q.OwnerID)
	}
	if q.CounterpartyID != "" {
		tx = tx.Where("counterparty_id = ?", q.CounterpartyID)
	}
	if q.WithPeriodOnly {
		tx = tx.Where("period_start IS NOT NULL AND period_end IS NOT NULL")
	}
	if q.ExcludeID != "" {
		tx = tx.Where("id <> ?", q.ExcludeID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.CreatedBefore != nil {
		tx = tx.Where("created_at < ?", q.CreatedBefore.UTC())
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []settlementRow
	if err := tx.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find settlements: %w", err)
	}

	records := make([]models.SettlementRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// InsertSettlement stores a new settlement record, assigning its id.
func (s *Store) InsertSettlement(ctx context.Context, record *models.SettlementRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	stamp(&record.CreatedAt, &record.UpdatedAt, s.now())
	row := settlementToRow(record)
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// UpdateSettlement rewrites the correctable fields of a settlement record.
func (s *Store) UpdateSettlement(ctx context.Context, record *models.SettlementRecord) error {
	record.UpdatedAt = s.now()
	res := s.conn(ctx).Model(&settlementRow{}).
		Where("id = ? AND flow = ? AND owner_id = ?", record.ID, string(record.Flow), record.OwnerID).
		Updates(map[string]any{
			"amount":          record.Amount,
			"payment_method":  record.PaymentMethod,
			"date":            record.Date.UTC(),
			"period_start":    utcPtr(record.PeriodStart),
			"period_end":      utcPtr(record.PeriodEnd),
			"period_total":    record.PeriodTotal,
			"manual_override": record.ManualOverride,
			"net_payable":     record.NetPayable,
			"closing_balance": record.ClosingBalance,
			"note":            record.Note,
			"updated_at":      record.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update settlement %s: %w", record.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("settlement %s: %w", record.ID, models.ErrNotFound)
	}
	return nil
}

// SetSettlementStatus moves a record through its commit lifecycle.
func (s *Store) SetSettlementStatus(ctx context.Context, flow models.Flow, ownerID, settlementID string, status models.SettlementStatus) error {
	res := s.conn(ctx).Model(&settlementRow{}).
		Where("id = ? AND flow = ? AND owner_id = ?", settlementID, string(flow), ownerID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("set settlement %s status: %w", settlementID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, models.ErrNotFound)
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
