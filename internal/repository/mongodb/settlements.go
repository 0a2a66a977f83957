package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetSettlement loads one settlement record of the owner.
func (r *MongoDBRepository) GetSettlement(ctx context.Context, flow models.Flow, ownerID, settlementID string) (*models.SettlementRecord, error) {
	oid, err := objectID("settlement", settlementID)
	if err != nil {
		return nil, err
	}
	var doc settlementDocument
	if err := r.settlements(flow).FindOne(ctx, bson.M{"_id": oid, "owner": ownerID}).Decode(&doc); err != nil {
		return nil, lookupError("settlement", settlementID, err)
	}
	record := doc.toModel(flow)
	return &record, nil
}

// FindSettlements returns the records matching q, newest first.
func (r *MongoDBRepository) FindSettlements(ctx context.Context, q models.SettlementQuery) ([]models.SettlementRecord, error) {
	filter := bson.M{}
	if q.OwnerID != "" {
		filter["owner"] = q.OwnerID
	}
	if q.CounterpartyID != "" {
		oid, err := primitive.ObjectIDFromHex(q.CounterpartyID)
		if err != nil {
			return []models.SettlementRecord{}, nil
		}
		filter["counterparty"] = oid
	}
	if q.WithPeriodOnly {
		filter["periodStart"] = bson.M{"$ne": nil}
		filter["periodEnd"] = bson.M{"$ne": nil}
	}
	if q.ExcludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(q.ExcludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}
	if q.CreatedBefore != nil {
		filter["createdAt"] = bson.M{"$lt": q.CreatedBefore.UTC()}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := r.settlements(q.Flow).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find settlements: %w", err)
	}
	var docs []settlementDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode settlements: %w", err)
	}

	records := make([]models.SettlementRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, doc.toModel(q.Flow))
	}
	return records, nil
}

// InsertSettlement stores a new settlement record, assigning its id.
func (r *MongoDBRepository) InsertSettlement(ctx context.Context, record *models.SettlementRecord) error {
	counterparty, err := objectID(string(record.Flow), record.CounterpartyID)
	if err != nil {
		return err
	}
	now := r.now()
	record.CreatedAt, record.UpdatedAt = now, now
	record.Date = record.Date.UTC()

	id := primitive.NewObjectID()
	if _, err := r.settlements(record.Flow).InsertOne(ctx, settlementToDocument(record, id, counterparty)); err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	record.ID = id.Hex()
	return nil
}

// UpdateSettlement rewrites the correctable fields of a settlement record.
func (r *MongoDBRepository) UpdateSettlement(ctx context.Context, record *models.SettlementRecord) error {
	oid, err := objectID("settlement", record.ID)
	if err != nil {
		return err
	}
	record.UpdatedAt = r.now()
	res, err := r.settlements(record.Flow).UpdateOne(ctx,
		bson.M{"_id": oid, "owner": record.OwnerID},
		bson.M{"$set": bson.M{
			"amount":         record.Amount,
			"paymentMethod":  record.PaymentMethod,
			"date":           record.Date.UTC(),
			"periodStart":    record.PeriodStart,
			"periodEnd":      record.PeriodEnd,
			"periodTotal":    record.PeriodTotal,
			"manualOverride": record.ManualOverride,
			"netPayable":     record.NetPayable,
			"closingBalance": record.ClosingBalance,
			"note":           record.Note,
			"updatedAt":      record.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("update settlement %s: %w", record.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("settlement %s: %w", record.ID, models.ErrNotFound)
	}
	return nil
}

// SetSettlementStatus moves a record through its commit lifecycle.
func (r *MongoDBRepository) SetSettlementStatus(ctx context.Context, flow models.Flow, ownerID, settlementID string, status models.SettlementStatus) error {
	oid, err := objectID("settlement", settlementID)
	if err != nil {
		return err
	}
	res, err := r.settlements(flow).UpdateOne(ctx,
		bson.M{"_id": oid, "owner": ownerID},
		bson.M{"$set": bson.M{"status": string(status), "updatedAt": r.now()}})
	if err != nil {
		return fmt.Errorf("set settlement %s status: %w", settlementID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, models.ErrNotFound)
	}
	return nil
}
