package mongodb

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

type farmerDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	Owner            string             `bson:"owner"`
	Code             string             `bson:"code"`
	Name             string             `bson:"name"`
	Mobile           string             `bson:"mobile,omitempty"`
	RatePerLiter     decimal.Decimal    `bson:"ratePerLiter"`
	Active           bool               `bson:"isActive"`
	CurrentBalance   decimal.Decimal    `bson:"currentBalance"`
	PendingAmount    decimal.Decimal    `bson:"pendingAmount"`
	TotalQuantity    decimal.Decimal    `bson:"totalMilk"`
	TotalAmount      decimal.Decimal    `bson:"totalAmount"`
	Version          int64              `bson:"version"`
	LastSettlementID string             `bson:"lastSettlementId,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d farmerDocument) toModel() *models.Farmer {
	return &models.Farmer{
		ID:               d.ID.Hex(),
		OwnerID:          d.Owner,
		Code:             d.Code,
		Name:             d.Name,
		Mobile:           d.Mobile,
		RatePerLiter:     d.RatePerLiter,
		Active:           d.Active,
		CurrentBalance:   models.NewFarmerLedgerBalance(d.CurrentBalance),
		PendingAmount:    d.PendingAmount,
		TotalQuantity:    d.TotalQuantity,
		TotalAmount:      d.TotalAmount,
		Version:          d.Version,
		LastSettlementID: d.LastSettlementID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type memberDocument struct {
	ID                    primitive.ObjectID `bson:"_id"`
	Owner                 string             `bson:"owner"`
	Code                  string             `bson:"code"`
	Name                  string             `bson:"name"`
	Mobile                string             `bson:"mobile,omitempty"`
	RatePerLiter          decimal.Decimal    `bson:"ratePerLiter"`
	Active                bool               `bson:"isActive"`
	SellingPaymentBalance decimal.Decimal    `bson:"sellingPaymentBalance"`
	TotalQuantity         decimal.Decimal    `bson:"totalMilk"`
	TotalAmount           decimal.Decimal    `bson:"totalAmount"`
	Version               int64              `bson:"version"`
	LastSettlementID      string             `bson:"lastSettlementId,omitempty"`
	CreatedAt             time.Time          `bson:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt"`
}

func (d memberDocument) toModel() *models.Member {
	return &models.Member{
		ID:                    d.ID.Hex(),
		OwnerID:               d.Owner,
		Code:                  d.Code,
		Name:                  d.Name,
		Mobile:                d.Mobile,
		RatePerLiter:          d.RatePerLiter,
		Active:                d.Active,
		SellingPaymentBalance: models.NewMemberLedgerBalance(d.SellingPaymentBalance),
		TotalQuantity:         d.TotalQuantity,
		TotalAmount:           d.TotalAmount,
		Version:               d.Version,
		LastSettlementID:      d.LastSettlementID,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

type lineItemDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Owner        string             `bson:"owner"`
	Counterparty primitive.ObjectID `bson:"counterparty"`
	Date         time.Time          `bson:"date"`
	Shift        string             `bson:"shift,omitempty"`
	Quantity     decimal.Decimal    `bson:"quantity"`
	Rate         decimal.Decimal    `bson:"rate"`
	Amount       decimal.Decimal    `bson:"amount"`
	IsPaid       bool               `bson:"isPaid"`
	SettlementID string             `bson:"settlementId,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d lineItemDocument) toModel(flow models.Flow) models.LineItem {
	return models.LineItem{
		ID:             d.ID.Hex(),
		Flow:           flow,
		OwnerID:        d.Owner,
		CounterpartyID: d.Counterparty.Hex(),
		Date:           d.Date.UTC(),
		Shift:          models.Shift(d.Shift),
		Quantity:       d.Quantity,
		Rate:           d.Rate,
		Amount:         d.Amount,
		IsPaid:         d.IsPaid,
		SettlementID:   d.SettlementID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type advanceDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	Owner         string             `bson:"owner"`
	Farmer        primitive.ObjectID `bson:"farmer"`
	Amount        decimal.Decimal    `bson:"amount"`
	SettledAmount decimal.Decimal    `bson:"settledAmount"`
	Status        string             `bson:"status"`
	Note          string             `bson:"note,omitempty"`
	Date          time.Time          `bson:"date"`
	SettlementID  string             `bson:"settlementId,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d advanceDocument) toModel() models.Advance {
	return models.Advance{
		ID:            d.ID.Hex(),
		OwnerID:       d.Owner,
		FarmerID:      d.Farmer.Hex(),
		Amount:        d.Amount,
		SettledAmount: d.SettledAmount,
		Status:        models.AdvanceStatus(d.Status),
		Note:          d.Note,
		Date:          d.Date.UTC(),
		SettlementID:  d.SettlementID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type settlementDocument struct {
	ID                  primitive.ObjectID `bson:"_id"`
	Owner               string             `bson:"owner"`
	Counterparty        primitive.ObjectID `bson:"counterparty"`
	Amount              decimal.Decimal    `bson:"amount"`
	PaymentMethod       string             `bson:"paymentMethod"`
	Date                time.Time          `bson:"date"`
	PeriodStart         *time.Time         `bson:"periodStart"`
	PeriodEnd           *time.Time         `bson:"periodEnd"`
	PreviousBalance     decimal.Decimal    `bson:"previousBalance"`
	PeriodTotal         decimal.Decimal    `bson:"periodTotal"`
	ComputedPeriodTotal decimal.Decimal    `bson:"computedPeriodTotal"`
	PeriodQuantity      decimal.Decimal    `bson:"periodQuantity"`
	ManualOverride      bool               `bson:"manualOverride"`
	AdvanceDeduction    decimal.Decimal    `bson:"totalAdvanceDeduction"`
	NetPayable          decimal.Decimal    `bson:"netPayable"`
	ClosingBalance      decimal.Decimal    `bson:"closingBalance"`
	SettledItems        []string           `bson:"settledItems"`
	SettledAdvances     []string           `bson:"settledAdvances,omitempty"`
	Status              string             `bson:"status"`
	Note                string             `bson:"note,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

func settlementToDocument(s *models.SettlementRecord, id, counterparty primitive.ObjectID) settlementDocument {
	return settlementDocument{
		ID:                  id,
		Owner:               s.OwnerID,
		Counterparty:        counterparty,
		Amount:              s.Amount,
		PaymentMethod:       s.PaymentMethod,
		Date:                s.Date,
		PeriodStart:         s.PeriodStart,
		PeriodEnd:           s.PeriodEnd,
		PreviousBalance:     s.PreviousBalance,
		PeriodTotal:         s.PeriodTotal,
		ComputedPeriodTotal: s.ComputedPeriodTotal,
		PeriodQuantity:      s.PeriodQuantity,
		ManualOverride:      s.ManualOverride,
		AdvanceDeduction:    s.AdvanceDeduction,
		NetPayable:          s.NetPayable,
		ClosingBalance:      s.ClosingBalance,
		SettledItems:        s.SettledItemIDs,
		SettledAdvances:     s.SettledAdvanceIDs,
		Status:              string(s.Status),
		Note:                s.Note,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (d settlementDocument) toModel(flow models.Flow) models.SettlementRecord {
	return models.SettlementRecord{
		ID:                  d.ID.Hex(),
		Flow:                flow,
		OwnerID:             d.Owner,
		CounterpartyID:      d.Counterparty.Hex(),
		Amount:              d.Amount,
		PaymentMethod:       d.PaymentMethod,
		Date:                d.Date.UTC(),
		PeriodStart:         d.PeriodStart,
		PeriodEnd:           d.PeriodEnd,
		PreviousBalance:     d.PreviousBalance,
		PeriodTotal:         d.PeriodTotal,
		ComputedPeriodTotal: d.ComputedPeriodTotal,
		PeriodQuantity:      d.PeriodQuantity,
		ManualOverride:      d.ManualOverride,
		AdvanceDeduction:    d.AdvanceDeduction,
		NetPayable:          d.NetPayable,
		ClosingBalance:      d.ClosingBalance,
		SettledItemIDs:      d.SettledItems,
		SettledAdvanceIDs:   d.SettledAdvances,
		Status:              models.SettlementStatus(d.Status),
		Note:                d.Note,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}
