package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetLineItem loads one line item of the owner.
func (s *Store) GetLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) (*models.LineItem, error) {
	var row lineItemRow
	if err := s.conn(ctx).Where("id = ? AND flow = ? AND owner_id = ?", itemID, string(flow), ownerID).First(&row).Error; err != nil {
		return nil, notFound("line item", itemID, err)
	}
	item := row.toModel()
	return &item, nil
}

// FindLineItems returns the items matching q ordered by date.
func (s *Store) FindLineItems(ctx context.Context, q models.LineItemQuery) ([]models.LineItem, error) {
	tx := s.conn(ctx).Where("flow = ? AND owner_id = ?", string(q.Flow), q.OwnerID)
	if q.CounterpartyID != "" {
		tx = tx.Where("counterparty_id = ?", q.CounterpartyID)
	}
	if q.Window.From != nil {
		tx = tx.Where("date >= ?", q.Window.From.UTC())
	}
	if q.Window.To != nil {
		tx = tx.Where("date <= ?", q.Window.To.UTC())
	}
	if q.Paid != nil {
		tx = tx.Where("is_paid = ?", *q.Paid)
	}
	if len(q.IDs) > 0 {
		tx = tx.Where("id IN ?", q.IDs)
	}

	var rows []lineItemRow
	if err := tx.Order("date ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find line items: %w", err)
	}

	items := make([]models.LineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// InsertLineItem stores a new line item, assigning its id.
func (s *Store) InsertLineItem(ctx context.Context, item *models.LineItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	stamp(&item.CreatedAt, &item.UpdatedAt, s.now())
	row := lineItemToRow(item)
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert line item: %w", err)
	}
	return nil
}

// UpdateLineItem rewrites the mutable fields of an unpaid item.
func (s *Store) UpdateLineItem(ctx context.Context, item *models.LineItem) error {
	item.UpdatedAt = s.now()
	res := s.conn(ctx).Model(&lineItemRow{}).
		Where("id = ? AND flow = ? AND owner_id = ? AND is_paid = ?", item.ID, string(item.Flow), item.OwnerID, false).
		Updates(map[string]any{
			"date":       item.Date.UTC(),
			"shift":      string(item.Shift),
			"quantity":   item.Quantity,
			"rate":       item.Rate,
			"amount":     item.Amount,
			"updated_at": item.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update line item %s: %w", item.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.unpaidMiss(ctx, item.Flow, item.OwnerID, item.ID)
	}
	return nil
}

// DeleteLineItem removes an unpaid item.
func (s *Store) DeleteLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) error {
	res := s.conn(ctx).
		Where("id = ? AND flow = ? AND owner_id = ? AND is_paid = ?", itemID, string(flow), ownerID, false).
		Delete(&lineItemRow{})
	if res.Error != nil {
		return fmt.Errorf("delete line item %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.unpaidMiss(ctx, flow, ownerID, itemID)
	}
	return nil
}

// MarkLineItemsPaid flips the listed unpaid items to paid.
func (s *Store) MarkLineItemsPaid(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, itemIDs []string, settlementID string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Model(&lineItemRow{}).
		Where("id IN ? AND flow = ? AND owner_id = ? AND counterparty_id = ? AND is_paid = ?",
			itemIDs, string(flow), ownerID, counterpartyID, false).
		Updates(map[string]any{
			"is_paid":       true,
			"settlement_id": settlementID,
			"updated_at":    s.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("mark line items paid: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// unpaidMiss explains why a write guarded by is_paid = false matched nothing.
func (s *Store) unpaidMiss(ctx context.Context, flow models.Flow, ownerID, itemID string) error {
	item, err := s.GetLineItem(ctx, flow, ownerID, itemID)
	if err != nil {
		return err
	}
	if item.IsPaid {
		return fmt.Errorf("line item %s: %w", itemID, models.ErrItemSettled)
	}
	return fmt.Errorf("line item %s changed concurrently: %w", itemID, models.ErrConcurrentUpdate)
}
