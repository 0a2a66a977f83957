package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetAdvance loads one advance of the owner.
func (r *MongoDBRepository) GetAdvance(ctx context.Context, ownerID, advanceID string) (*models.Advance, error) {
	oid, err := objectID("advance", advanceID)
	if err != nil {
		return nil, err
	}
	var doc advanceDocument
	if err := r.advances().FindOne(ctx, bson.M{"_id": oid, "owner": ownerID}).Decode(&doc); err != nil {
		return nil, lookupError("advance", advanceID, err)
	}
	advance := doc.toModel()
	return &advance, nil
}

// FindAdvances returns the advances matching q ordered by date.
func (r *MongoDBRepository) FindAdvances(ctx context.Context, q models.AdvanceQuery) ([]models.Advance, error) {
	filter := bson.M{"owner": q.OwnerID}
	if q.FarmerID != "" {
		oid, err := primitive.ObjectIDFromHex(q.FarmerID)
		if err != nil {
			return []models.Advance{}, nil
		}
		filter["farmer"] = oid
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, st := range q.Statuses {
			statuses = append(statuses, string(st))
		}
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := r.advances().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find advances: %w", err)
	}
	var docs []advanceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode advances: %w", err)
	}

	advances := make([]models.Advance, 0, len(docs))
	for _, doc := range docs {
		advances = append(advances, doc.toModel())
	}
	return advances, nil
}

// InsertAdvance stores a new advance, assigning its id.
func (r *MongoDBRepository) InsertAdvance(ctx context.Context, advance *models.Advance) error {
	farmer, err := objectID("farmer", advance.FarmerID)
	if err != nil {
		return err
	}
	now := r.now()
	doc := advanceDocument{
		ID:            primitive.NewObjectID(),
		Owner:         advance.OwnerID,
		Farmer:        farmer,
		Amount:        advance.Amount,
		SettledAmount: advance.SettledAmount,
		Status:        string(advance.Status),
		Note:          advance.Note,
		Date:          advance.Date.UTC(),
		SettlementID:  advance.SettlementID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.advances().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert advance: %w", err)
	}
	advance.ID = doc.ID.Hex()
	advance.CreatedAt, advance.UpdatedAt = now, now
	return nil
}

// UpdateAdvance rewrites the settlement progress of an advance.
func (r *MongoDBRepository) UpdateAdvance(ctx context.Context, advance *models.Advance) error {
	oid, err := objectID("advance", advance.ID)
	if err != nil {
		return err
	}
	advance.UpdatedAt = r.now()
	res, err := r.advances().UpdateOne(ctx,
		bson.M{"_id": oid, "owner": advance.OwnerID},
		bson.M{"$set": bson.M{
			"settledAmount": advance.SettledAmount,
			"status":        string(advance.Status),
			"note":          advance.Note,
			"settlementId":  advance.SettlementID,
			"updatedAt":     advance.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("update advance %s: %w", advance.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("advance %s: %w", advance.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteAdvance removes an advance.
func (r *MongoDBRepository) DeleteAdvance(ctx context.Context, ownerID, advanceID string) error {
	oid, err := objectID("advance", advanceID)
	if err != nil {
		return err
	}
	res, err := r.advances().DeleteOne(ctx, bson.M{"_id": oid, "owner": ownerID})
	if err != nil {
		return fmt.Errorf("delete advance %s: %w", advanceID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("advance %s: %w", advanceID, models.ErrNotFound)
	}
	return nil
}

// SettleAdvances fully settles the listed outstanding advances.
func (r *MongoDBRepository) SettleAdvances(ctx context.Context, ownerID, farmerID string, advanceIDs []string, settlementID string) (int64, error) {
	if len(advanceIDs) == 0 {
		return 0, nil
	}
	farmer, err := objectID("farmer", farmerID)
	if err != nil {
		return 0, err
	}

	filter := bson.M{
		"_id":    bson.M{"$in": objectIDs(advanceIDs)},
		"owner":  ownerID,
		"farmer": farmer,
		"status": bson.M{"$in": []string{string(models.AdvancePending), string(models.AdvancePartial)}},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "settledAmount", Value: "$amount"},
			{Key: "status", Value: string(models.AdvanceSettled)},
			{Key: "settlementId", Value: settlementID},
			{Key: "updatedAt", Value: r.now()},
		}}},
	}
	res, err := r.advances().UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("settle advances: %w", err)
	}
	return res.ModifiedCount, nil
}
