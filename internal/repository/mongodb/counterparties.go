package mongodb

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetFarmer loads a farmer of the owner.
func (r *MongoDBRepository) GetFarmer(ctx context.Context, ownerID, farmerID string) (*models.Farmer, error) {
	oid, err := objectID("farmer", farmerID)
	if err != nil {
		return nil, err
	}
	var doc farmerDocument
	if err := r.counterparties(models.FlowFarmer).FindOne(ctx, bson.M{"_id": oid, "owner": ownerID}).Decode(&doc); err != nil {
		return nil, lookupError("farmer", farmerID, err)
	}
	return doc.toModel(), nil
}

// GetMember loads a member of the owner.
func (r *MongoDBRepository) GetMember(ctx context.Context, ownerID, memberID string) (*models.Member, error) {
	oid, err := objectID("member", memberID)
	if err != nil {
		return nil, err
	}
	var doc memberDocument
	if err := r.counterparties(models.FlowMember).FindOne(ctx, bson.M{"_id": oid, "owner": ownerID}).Decode(&doc); err != nil {
		return nil, lookupError("member", memberID, err)
	}
	return doc.toModel(), nil
}

// InsertFarmer stores a new farmer, assigning its id.
func (r *MongoDBRepository) InsertFarmer(ctx context.Context, farmer *models.Farmer) error {
	now := r.now()
	doc := farmerDocument{
		ID:               primitive.NewObjectID(),
		Owner:            farmer.OwnerID,
		Code:             farmer.Code,
		Name:             farmer.Name,
		Mobile:           farmer.Mobile,
		RatePerLiter:     farmer.RatePerLiter,
		Active:           farmer.Active,
		CurrentBalance:   farmer.CurrentBalance.Decimal,
		PendingAmount:    farmer.PendingAmount,
		TotalQuantity:    farmer.TotalQuantity,
		TotalAmount:      farmer.TotalAmount,
		Version:          farmer.Version,
		LastSettlementID: farmer.LastSettlementID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := r.counterparties(models.FlowFarmer).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert farmer: %w", err)
	}
	farmer.ID = doc.ID.Hex()
	farmer.CreatedAt, farmer.UpdatedAt = now, now
	return nil
}

// InsertMember stores a new member, assigning its id.
func (r *MongoDBRepository) InsertMember(ctx context.Context, member *models.Member) error {
	now := r.now()
	doc := memberDocument{
		ID:                    primitive.NewObjectID(),
		Owner:                 member.OwnerID,
		Code:                  member.Code,
		Name:                  member.Name,
		Mobile:                member.Mobile,
		RatePerLiter:          member.RatePerLiter,
		Active:                member.Active,
		SellingPaymentBalance: member.SellingPaymentBalance.Decimal,
		TotalQuantity:         member.TotalQuantity,
		TotalAmount:           member.TotalAmount,
		Version:               member.Version,
		LastSettlementID:      member.LastSettlementID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if _, err := r.counterparties(models.FlowMember).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	member.ID = doc.ID.Hex()
	member.CreatedAt, member.UpdatedAt = now, now
	return nil
}

// SetActive flips the active flag of a counterparty.
func (r *MongoDBRepository) SetActive(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, active bool) error {
	return r.updateCounterparty(ctx, flow, ownerID, counterpartyID, bson.M{
		"$set": bson.M{"isActive": active, "updatedAt": r.now()},
	})
}

// AddTotals increments the recorded quantity and amount aggregates.
func (r *MongoDBRepository) AddTotals(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, quantity, amount decimal.Decimal) error {
	return r.updateCounterparty(ctx, flow, ownerID, counterpartyID, bson.M{
		"$inc": bson.M{"totalMilk": quantity, "totalAmount": amount},
		"$set": bson.M{"updatedAt": r.now()},
	})
}

// SetFarmerBalance overwrites the farmer balance guarded by version.
func (r *MongoDBRepository) SetFarmerBalance(ctx context.Context, ownerID, farmerID string, expectedVersion int64, balance models.FarmerLedgerBalance, settlementID string) error {
	return r.setBalance(ctx, models.FlowFarmer, ownerID, farmerID, expectedVersion, balance.Decimal, settlementID)
}

// SetMemberBalance overwrites the member balance guarded by version.
func (r *MongoDBRepository) SetMemberBalance(ctx context.Context, ownerID, memberID string, expectedVersion int64, balance models.MemberLedgerBalance, settlementID string) error {
	return r.setBalance(ctx, models.FlowMember, ownerID, memberID, expectedVersion, balance.Decimal, settlementID)
}

// AdjustBalance increments the running balance by delta.
func (r *MongoDBRepository) AdjustBalance(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, delta decimal.Decimal) error {
	return r.updateCounterparty(ctx, flow, ownerID, counterpartyID, bson.M{
		"$inc": bson.M{balanceField(flow): delta, "version": 1},
		"$set": bson.M{"updatedAt": r.now()},
	})
}

// AddFarmerPending increments the outstanding advance total.
func (r *MongoDBRepository) AddFarmerPending(ctx context.Context, ownerID, farmerID string, delta decimal.Decimal) error {
	return r.updateCounterparty(ctx, models.FlowFarmer, ownerID, farmerID, bson.M{
		"$inc": bson.M{"pendingAmount": delta},
		"$set": bson.M{"updatedAt": r.now()},
	})
}

// SetFarmerPending overwrites the outstanding advance total.
func (r *MongoDBRepository) SetFarmerPending(ctx context.Context, ownerID, farmerID string, value decimal.Decimal) error {
	return r.updateCounterparty(ctx, models.FlowFarmer, ownerID, farmerID, bson.M{
		"$set": bson.M{"pendingAmount": value, "updatedAt": r.now()},
	})
}

func (r *MongoDBRepository) setBalance(ctx context.Context, flow models.Flow, ownerID, id string, expectedVersion int64, balance decimal.Decimal, settlementID string) error {
	oid, err := objectID(string(flow), id)
	if err != nil {
		return err
	}

	res, err := r.counterparties(flow).UpdateOne(ctx,
		bson.M{"_id": oid, "owner": ownerID, "version": expectedVersion},
		bson.M{
			"$set": bson.M{balanceField(flow): balance, "lastSettlementId": settlementID, "updatedAt": r.now()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("set %s balance: %w", flow, err)
	}
	if res.MatchedCount == 0 {
		count, err := r.counterparties(flow).CountDocuments(ctx, bson.M{"_id": oid, "owner": ownerID})
		if err != nil {
			return fmt.Errorf("count %s: %w", flow, err)
		}
		if count == 0 {
			return fmt.Errorf("%s %s: %w", flow, id, models.ErrNotFound)
		}
		return fmt.Errorf("%s %s changed since version %d: %w", flow, id, expectedVersion, models.ErrConcurrentUpdate)
	}
	return nil
}

func (r *MongoDBRepository) updateCounterparty(ctx context.Context, flow models.Flow, ownerID, id string, update bson.M) error {
	oid, err := objectID(string(flow), id)
	if err != nil {
		return err
	}
	res, err := r.counterparties(flow).UpdateOne(ctx, bson.M{"_id": oid, "owner": ownerID}, update)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", flow, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", flow, id, models.ErrNotFound)
	}
	return nil
}

func balanceField(flow models.Flow) string {
	if flow == models.FlowFarmer {
		return "currentBalance"
	}
	return "sellingPaymentBalance"
}
