package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetAdvance loads one advance of the owner.
func (s *Store) GetAdvance(ctx context.Context, ownerID, advanceID string) (*models.Advance, error) {
	var row advanceRow
	if err := s.conn(ctx).Where("id = ? AND owner_id = ?", advanceID, ownerID).First(&row).Error; err != nil {
		return nil, notFound("advance", advanceID, err)
	}
	advance := row.toModel()
	return &advance, nil
}

// FindAdvances returns the advances matching q ordered by date.
func (s *Store) FindAdvances(ctx context.Context, q models.AdvanceQuery) ([]models.Advance, error) {
	tx := s.conn(ctx).Where("owner_id = ?", q.OwnerID)
	if q.FarmerID != "" {
		tx = tx.Where("farmer_id = ?", q.FarmerID)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		tx = tx.Where("status IN ?", statuses)
	}

	var rows []advanceRow
	if err := tx.Order("date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find advances: %w", err)
	}

	advances := make([]models.Advance, 0, len(rows))
	for _, row := range rows {
		advances = append(advances, row.toModel())
	}
	return advances, nil
}

// InsertAdvance stores a new advance, assigning its id.
func (s *Store) InsertAdvance(ctx context.Context, advance *models.Advance) error {
	if advance.ID == "" {
		advance.ID = uuid.NewString()
	}
	stamp(&advance.CreatedAt, &advance.UpdatedAt, s.now())
	row := advanceToRow(advance)
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert advance: %w", err)
	}
	return nil
}

// UpdateAdvance rewrites the settlement progress of an advance.
func (s *Store) UpdateAdvance(ctx context.Context, advance *models.Advance) error {
	advance.UpdatedAt = s.now()
	res := s.conn(ctx).Model(&advanceRow{}).
		Where("id = ? AND owner_id = ?", advance.ID, advance.OwnerID).
		Updates(map[string]any{
			"settled_amount": advance.SettledAmount,
			"status":         string(advance.Status),
			"note":           advance.Note,
			"settlement_id":  advance.SettlementID,
			"updated_at":     advance.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update advance %s: %w", advance.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("advance %s: %w", advance.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteAdvance removes an advance.
func (s *Store) DeleteAdvance(ctx context.Context, ownerID, advanceID string) error {
	res := s.conn(ctx).Where("id = ? AND owner_id = ?", advanceID, ownerID).Delete(&advanceRow{})
	if res.Error != nil {
		return fmt.Errorf("delete advance %s: %w", advanceID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("advance %s: %w", advanceID, models.ErrNotFound)
	}
	return nil
}

// SettleAdvances fully settles the listed outstanding advances.
func (s *Store) SettleAdvances(ctx context.Context, ownerID, farmerID string, advanceIDs []string, settlementID string) (int64, error) {
	if len(advanceIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Model(&advanceRow{}).
		Where("id IN ? AND owner_id = ? AND farmer_id = ? AND status IN ?", advanceIDs, ownerID, farmerID,
			[]string{string(models.AdvancePending), string(models.AdvancePartial)}).
		Updates(map[string]any{
			"settled_amount": gorm.Expr("amount"),
			"status":         string(models.AdvanceSettled),
			"settlement_id":  settlementID,
			"updated_at":     s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("settle advances: %w", res.Error)
	}
	return res.RowsAffected, nil
}
