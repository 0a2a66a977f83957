package sqlstore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

type farmerRow struct {
	ID               string          `gorm:"primaryKey;size:36"`
	OwnerID          string          `gorm:"size:64;not null;index"`
	Code             string          `gorm:"size:64"`
	Name             string          `gorm:"size:255;not null"`
	Mobile           string          `gorm:"size:32"`
	RatePerLiter     decimal.Decimal `gorm:"type:numeric;not null"`
	Active           bool            `gorm:"not null"`
	CurrentBalance   decimal.Decimal `gorm:"type:numeric;not null"`
	PendingAmount    decimal.Decimal `gorm:"type:numeric;not null"`
	TotalQuantity    decimal.Decimal `gorm:"type:numeric;not null"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric;not null"`
	Version          int64           `gorm:"not null"`
	LastSettlementID string          `gorm:"size:36"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (farmerRow) TableName() string { return "farmers" }

type memberRow struct {
	ID                    string          `gorm:"primaryKey;size:36"`
	OwnerID               string          `gorm:"size:64;not null;index"`
	Code                  string          `gorm:"size:64"`
	Name                  string          `gorm:"size:255;not null"`
	Mobile                string          `gorm:"size:32"`
	RatePerLiter          decimal.Decimal `gorm:"type:numeric;not null"`
	Active                bool            `gorm:"not null"`
	SellingPaymentBalance decimal.Decimal `gorm:"type:numeric;not null"`
	TotalQuantity         decimal.Decimal `gorm:"type:numeric;not null"`
	TotalAmount           decimal.Decimal `gorm:"type:numeric;not null"`
	Version               int64           `gorm:"not null"`
	LastSettlementID      string          `gorm:"size:36"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (memberRow) TableName() string { return "members" }

type lineItemRow struct {
	ID             string          `gorm:"primaryKey;size:36"`
	Flow           string          `gorm:"size:16;not null;index:idx_line_items_lookup,priority:3"`
	OwnerID        string          `gorm:"size:64;not null;index:idx_line_items_lookup,priority:1"`
	CounterpartyID string          `gorm:"size:36;not null;index:idx_line_items_lookup,priority:2"`
	Date           time.Time       `gorm:"not null;index:idx_line_items_lookup,priority:4"`
	Shift          string          `gorm:"size:16"`
	Quantity       decimal.Decimal `gorm:"type:numeric;not null"`
	Rate           decimal.Decimal `gorm:"type:numeric;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric;not null"`
	IsPaid         bool            `gorm:"not null;index"`
	SettlementID   string          `gorm:"size:36"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (lineItemRow) TableName() string { return "line_items" }

type advanceRow struct {
	ID            string          `gorm:"primaryKey;size:36"`
	OwnerID       string          `gorm:"size:64;not null;index:idx_advances_farmer,priority:1"`
	FarmerID      string          `gorm:"size:36;not null;index:idx_advances_farmer,priority:2"`
	Amount        decimal.Decimal `gorm:"type:numeric;not null"`
	SettledAmount decimal.Decimal `gorm:"type:numeric;not null"`
	Status        string          `gorm:"size:16;not null;index:idx_advances_farmer,priority:3"`
	Note          string          `gorm:"type:text"`
	Date          time.Time       `gorm:"not null"`
	SettlementID  string          `gorm:"size:36"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (advanceRow) TableName() string { return "advances" }

type settlementRow struct {
	ID                  string          `gorm:"primaryKey;size:36"`
	Flow                string          `gorm:"size:16;not null;index:idx_settlements_lookup,priority:3"`
	OwnerID             string          `gorm:"size:64;not null;index:idx_settlements_lookup,priority:1"`
	CounterpartyID      string          `gorm:"size:36;not null;index:idx_settlements_lookup,priority:2"`
	Amount              decimal.Decimal `gorm:"type:numeric;not null"`
	PaymentMethod       string          `gorm:"size:32"`
	Date                time.Time       `gorm:"not null"`
	PeriodStart         *time.Time
	PeriodEnd           *time.Time
	PreviousBalance     decimal.Decimal `gorm:"type:numeric;not null"`
	PeriodTotal         decimal.Decimal `gorm:"type:numeric;not null"`
	ComputedPeriodTotal decimal.Decimal `gorm:"type:numeric;not null"`
	PeriodQuantity      decimal.Decimal `gorm:"type:numeric;not null"`
	ManualOverride      bool            `gorm:"not null"`
	AdvanceDeduction    decimal.Decimal `gorm:"type:numeric;not null"`
	NetPayable          decimal.Decimal `gorm:"type:numeric;not null"`
	ClosingBalance      decimal.Decimal `gorm:"type:numeric;not null"`
	SettledItemIDs      []string        `gorm:"type:text;serializer:json"`
	SettledAdvanceIDs   []string        `gorm:"type:text;serializer:json"`
	Status              string          `gorm:"size:16;not null;index"`
	Note                string          `gorm:"type:text"`
	CreatedAt           time.Time       `gorm:"index"`
	UpdatedAt           time.Time
}

func (settlementRow) TableName() string { return "settlements" }

func farmerToRow(f *models.Farmer) farmerRow {
	return farmerRow{
		ID:               f.ID,
		OwnerID:          f.OwnerID,
		Code:             f.Code,
		Name:             f.Name,
		Mobile:           f.Mobile,
		RatePerLiter:     f.RatePerLiter,
		Active:           f.Active,
		CurrentBalance:   f.CurrentBalance.Decimal,
		PendingAmount:    f.PendingAmount,
		TotalQuantity:    f.TotalQuantity,
		TotalAmount:      f.TotalAmount,
		Version:          f.Version,
		LastSettlementID: f.LastSettlementID,
		CreatedAt:        f.CreatedAt.UTC(),
		UpdatedAt:        f.UpdatedAt.UTC(),
	}
}

func (r farmerRow) toModel() *models.Farmer {
	return &models.Farmer{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		Code:             r.Code,
		Name:             r.Name,
		Mobile:           r.Mobile,
		RatePerLiter:     r.RatePerLiter,
		Active:           r.Active,
		CurrentBalance:   models.NewFarmerLedgerBalance(r.CurrentBalance),
		PendingAmount:    r.PendingAmount,
		TotalQuantity:    r.TotalQuantity,
		TotalAmount:      r.TotalAmount,
		Version:          r.Version,
		LastSettlementID: r.LastSettlementID,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func memberToRow(m *models.Member) memberRow {
	return memberRow{
		ID:                    m.ID,
		OwnerID:               m.OwnerID,
		Code:                  m.Code,
		Name:                  m.Name,
		Mobile:                m.Mobile,
		RatePerLiter:          m.RatePerLiter,
		Active:                m.Active,
		SellingPaymentBalance: m.SellingPaymentBalance.Decimal,
		TotalQuantity:         m.TotalQuantity,
		TotalAmount:           m.TotalAmount,
		Version:               m.Version,
		LastSettlementID:      m.LastSettlementID,
		CreatedAt:             m.CreatedAt.UTC(),
		UpdatedAt:             m.UpdatedAt.UTC(),
	}
}

func (r memberRow) toModel() *models.Member {
	return &models.Member{
		ID:                    r.ID,
		OwnerID:               r.OwnerID,
		Code:                  r.Code,
		Name:                  r.Name,
		Mobile:                r.Mobile,
		RatePerLiter:          r.RatePerLiter,
		Active:                r.Active,
		SellingPaymentBalance: models.NewMemberLedgerBalance(r.SellingPaymentBalance),
		TotalQuantity:         r.TotalQuantity,
		TotalAmount:           r.TotalAmount,
		Version:               r.Version,
		LastSettlementID:      r.LastSettlementID,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
}

func lineItemToRow(l *models.LineItem) lineItemRow {
	return lineItemRow{
		ID:             l.ID,
		Flow:           string(l.Flow),
		OwnerID:        l.OwnerID,
		CounterpartyID: l.CounterpartyID,
		Date:           l.Date.UTC(),
		Shift:          string(l.Shift),
		Quantity:       l.Quantity,
		Rate:           l.Rate,
		Amount:         l.Amount,
		IsPaid:         l.IsPaid,
		SettlementID:   l.SettlementID,
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
	}
}

func (r lineItemRow) toModel() models.LineItem {
	return models.LineItem{
		ID:             r.ID,
		Flow:           models.Flow(r.Flow),
		OwnerID:        r.OwnerID,
		CounterpartyID: r.CounterpartyID,
		Date:           r.Date.UTC(),
		Shift:          models.Shift(r.Shift),
		Quantity:       r.Quantity,
		Rate:           r.Rate,
		Amount:         r.Amount,
		IsPaid:         r.IsPaid,
		SettlementID:   r.SettlementID,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func advanceToRow(a *models.Advance) advanceRow {
	return advanceRow{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		FarmerID:      a.FarmerID,
		Amount:        a.Amount,
		SettledAmount: a.SettledAmount,
		Status:        string(a.Status),
		Note:          a.Note,
		Date:          a.Date.UTC(),
		SettlementID:  a.SettlementID,
		CreatedAt:     a.CreatedAt.UTC(),
		UpdatedAt:     a.UpdatedAt.UTC(),
	}
}

func (r advanceRow) toModel() models.Advance {
	return models.Advance{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		FarmerID:      r.FarmerID,
		Amount:        r.Amount,
		SettledAmount: r.SettledAmount,
		Status:        models.AdvanceStatus(r.Status),
		Note:          r.Note,
		Date:          r.Date.UTC(),
		SettlementID:  r.SettlementID,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func settlementToRow(s *models.SettlementRecord) settlementRow {
	return settlementRow{
		ID:                  s.ID,
		Flow:                string(s.Flow),
		OwnerID:             s.OwnerID,
		CounterpartyID:      s.CounterpartyID,
		Amount:              s.Amount,
		PaymentMethod:       s.PaymentMethod,
		Date:                s.Date.UTC(),
		PeriodStart:         utcPtr(s.PeriodStart),
		PeriodEnd:           utcPtr(s.PeriodEnd),
		PreviousBalance:     s.PreviousBalance,
		PeriodTotal:         s.PeriodTotal,
		ComputedPeriodTotal: s.ComputedPeriodTotal,
		PeriodQuantity:      s.PeriodQuantity,
		ManualOverride:      s.ManualOverride,
		AdvanceDeduction:    s.AdvanceDeduction,
		NetPayable:          s.NetPayable,
		ClosingBalance:      s.ClosingBalance,
		SettledItemIDs:      s.SettledItemIDs,
		SettledAdvanceIDs:   s.SettledAdvanceIDs,
		Status:              string(s.Status),
		Note:                s.Note,
		CreatedAt:           s.CreatedAt.UTC(),
		UpdatedAt:           s.UpdatedAt.UTC(),
	}
}

func (r settlementRow) toModel() models.SettlementRecord {
	return models.SettlementRecord{
		ID:                  r.ID,
		Flow:                models.Flow(r.Flow),
		OwnerID:             r.OwnerID,
		CounterpartyID:      r.CounterpartyID,
		Amount:              r.Amount,
		PaymentMethod:       r.PaymentMethod,
		Date:                r.Date.UTC(),
		PeriodStart:         utcPtr(r.PeriodStart),
		PeriodEnd:           utcPtr(r.PeriodEnd),
		PreviousBalance:     r.PreviousBalance,
		PeriodTotal:         r.PeriodTotal,
		ComputedPeriodTotal: r.ComputedPeriodTotal,
		PeriodQuantity:      r.PeriodQuantity,
		ManualOverride:      r.ManualOverride,
		AdvanceDeduction:    r.AdvanceDeduction,
		NetPayable:          r.NetPayable,
		ClosingBalance:      r.ClosingBalance,
		SettledItemIDs:      r.SettledItemIDs,
		SettledAdvanceIDs:   r.SettledAdvanceIDs,
		Status:              models.SettlementStatus(r.Status),
		Note:                r.Note,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
