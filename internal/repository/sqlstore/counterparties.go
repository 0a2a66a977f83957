package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetFarmer loads a farmer of the owner.
func (s *Store) GetFarmer(ctx context.Context, ownerID, farmerID string) (*models.Farmer, error) {
	var row farmerRow
	if err := s.conn(ctx).Where("id = ? AND owner_id = ?", farmerID, ownerID).First(&row).Error; err != nil {
		return nil, notFound("farmer", farmerID, err)
	}
	return row.toModel(), nil
}

// GetMember loads a member of the owner.
func (s *Store) GetMember(ctx context.Context, ownerID, memberID string) (*models.Member, error) {
	var row memberRow
	if err := s.conn(ctx).Where("id = ? AND owner_id = ?", memberID, ownerID).First(&row).Error; err != nil {
		return nil, notFound("member", memberID, err)
	}
	return row.toModel(), nil
}

// InsertFarmer stores a new farmer, assigning its id.
func (s *Store) InsertFarmer(ctx context.Context, farmer *models.Farmer) error {
	if farmer.ID == "" {
		farmer.ID = uuid.NewString()
	}
	stamp(&farmer.CreatedAt, &farmer.UpdatedAt, s.now())
	row := farmerToRow(farmer)
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert farmer: %w", err)
	}
	return nil
}

// InsertMember stores a new member, assigning its id.
func (s *Store) InsertMember(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	stamp(&member.CreatedAt, &member.UpdatedAt, s.now())
	row := memberToRow(member)
	if err := s.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// SetActive flips the active flag of a counterparty.
func (s *Store) SetActive(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, active bool) error {
	return s.updateCounterparty(ctx, flow, ownerID, counterpartyID, map[string]any{
		"active": active,
	})
}

// AddTotals increments the recorded quantity and amount aggregates.
func (s *Store) AddTotals(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, quantity, amount decimal.Decimal) error {
	return s.addToCounterparty(ctx, flow, ownerID, counterpartyID, map[string]decimal.Decimal{
		"total_quantity": quantity,
		"total_amount":   amount,
	}, false)
}

// SetFarmerBalance overwrites the farmer balance guarded by version.
func (s *Store) SetFarmerBalance(ctx context.Context, ownerID, farmerID string, expectedVersion int64, balance models.FarmerLedgerBalance, settlementID string) error {
	return s.setBalance(ctx, models.FlowFarmer, ownerID, farmerID, expectedVersion, balance.Decimal, settlementID)
}

// SetMemberBalance overwrites the member balance guarded by version.
func (s *Store) SetMemberBalance(ctx context.Context, ownerID, memberID string, expectedVersion int64, balance models.MemberLedgerBalance, settlementID string) error {
	return s.setBalance(ctx, models.FlowMember, ownerID, memberID, expectedVersion, balance.Decimal, settlementID)
}

// AdjustBalance increments the running balance by delta.
func (s *Store) AdjustBalance(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, delta decimal.Decimal) error {
	return s.addToCounterparty(ctx, flow, ownerID, counterpartyID, map[string]decimal.Decimal{
		balanceColumn(flow): delta,
	}, true)
}

// AddFarmerPending increments the outstanding advance total.
func (s *Store) AddFarmerPending(ctx context.Context, ownerID, farmerID string, delta decimal.Decimal) error {
	return s.addToCounterparty(ctx, models.FlowFarmer, ownerID, farmerID, map[string]decimal.Decimal{
		"pending_amount": delta,
	}, false)
}

// SetFarmerPending overwrites the outstanding advance total.
func (s *Store) SetFarmerPending(ctx context.Context, ownerID, farmerID string, value decimal.Decimal) error {
	return s.updateCounterparty(ctx, models.FlowFarmer, ownerID, farmerID, map[string]any{
		"pending_amount": value,
	})
}

func (s *Store) setBalance(ctx context.Context, flow models.Flow, ownerID, id string, expectedVersion int64, balance decimal.Decimal, settlementID string) error {
	res := s.conn(ctx).Table(counterpartyTable(flow)).
		Where("id = ? AND owner_id = ? AND version = ?", id, ownerID, expectedVersion).
		Updates(map[string]any{
			balanceColumn(flow):  balance,
			"last_settlement_id": settlementID,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("set %s balance: %w", flow, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.counterpartyExists(ctx, flow, ownerID, id); err != nil {
			return err
		}
		return fmt.Errorf("%s %s changed since version %d: %w", flow, id, expectedVersion, models.ErrConcurrentUpdate)
	}
	return nil
}

// addToCounterparty adds deltas to money columns. The sums are computed with
// decimal arithmetic in Go: SQLite stores NUMERIC columns as REAL, so
// "column + ?" in SQL would round through float64.
func (s *Store) addToCounterparty(ctx context.Context, flow models.Flow, ownerID, id string, deltas map[string]decimal.Decimal, bumpVersion bool) error {
	columns := make([]string, 0, len(deltas))
	for column := range deltas {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Table(counterpartyTable(flow)).Select(columns).Where("id = ? AND owner_id = ?", id, ownerID)
		if tx.Dialector.Name() == DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		current := make([]decimal.Decimal, len(columns))
		dest := make([]any, len(columns))
		for i := range current {
			dest[i] = &current[i]
		}
		if err := q.Row().Scan(dest...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%s %s: %w", flow, id, models.ErrNotFound)
			}
			return fmt.Errorf("load %s %s: %w", flow, id, err)
		}

		fields := make(map[string]any, len(columns)+2)
		for i, column := range columns {
			fields[column] = current[i].Add(deltas[column])
		}
		if bumpVersion {
			fields["version"] = gorm.Expr("version + 1")
		}
		return (&Store{db: tx, logger: s.logger, now: s.now}).updateCounterparty(ctx, flow, ownerID, id, fields)
	})
}

func (s *Store) updateCounterparty(ctx context.Context, flow models.Flow, ownerID, id string, fields map[string]any) error {
	fields["updated_at"] = s.now()
	res := s.conn(ctx).Table(counterpartyTable(flow)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update %s %s: %w", flow, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", flow, id, models.ErrNotFound)
	}
	return nil
}

func (s *Store) counterpartyExists(ctx context.Context, flow models.Flow, ownerID, id string) error {
	var count int64
	if err := s.conn(ctx).Table(counterpartyTable(flow)).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count %s: %w", flow, err)
	}
	if count == 0 {
		return fmt.Errorf("%s %s: %w", flow, id, models.ErrNotFound)
	}
	return nil
}
