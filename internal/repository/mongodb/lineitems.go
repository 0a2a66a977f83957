package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/dairy/internal/domain/models"
)

// GetLineItem loads one line item of the owner.
func (r *MongoDBRepository) GetLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) (*models.LineItem, error) {
	oid, err := objectID("line item", itemID)
	if err != nil {
		return nil, err
	}
	var doc lineItemDocument
	if err := r.lineItems(flow).FindOne(ctx, bson.M{"_id": oid, "owner": ownerID}).Decode(&doc); err != nil {
		return nil, lookupError("line item", itemID, err)
	}
	item := doc.toModel(flow)
	return &item, nil
}

// FindLineItems returns the items matching q ordered by date.
func (r *MongoDBRepository) FindLineItems(ctx context.Context, q models.LineItemQuery) ([]models.LineItem, error) {
	filter := bson.M{"owner": q.OwnerID}
	if q.CounterpartyID != "" {
		oid, err := primitive.ObjectIDFromHex(q.CounterpartyID)
		if err != nil {
			return []models.LineItem{}, nil
		}
		filter["counterparty"] = oid
	}
	if q.Window.From != nil || q.Window.To != nil {
		dateFilter := bson.M{}
		if q.Window.From != nil {
			dateFilter["$gte"] = q.Window.From.UTC()
		}
		if q.Window.To != nil {
			dateFilter["$lte"] = q.Window.To.UTC()
		}
		filter["date"] = dateFilter
	}
	if q.Paid != nil {
		filter["isPaid"] = *q.Paid
	}
	if len(q.IDs) > 0 {
		filter["_id"] = bson.M{"$in": objectIDs(q.IDs)}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := r.lineItems(q.Flow).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find line items: %w", err)
	}
	var docs []lineItemDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}

	items := make([]models.LineItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toModel(q.Flow))
	}
	return items, nil
}

// InsertLineItem stores a new line item, assigning its id.
func (r *MongoDBRepository) InsertLineItem(ctx context.Context, item *models.LineItem) error {
	counterparty, err := objectID(string(item.Flow), item.CounterpartyID)
	if err != nil {
		return err
	}
	now := r.now()
	doc := lineItemDocument{
		ID:           primitive.NewObjectID(),
		Owner:        item.OwnerID,
		Counterparty: counterparty,
		Date:         item.Date.UTC(),
		Shift:        string(item.Shift),
		Quantity:     item.Quantity,
		Rate:         item.Rate,
		Amount:       item.Amount,
		IsPaid:       item.IsPaid,
		SettlementID: item.SettlementID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.lineItems(item.Flow).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert line item: %w", err)
	}
	item.ID = doc.ID.Hex()
	item.CreatedAt, item.UpdatedAt = now, now
	return nil
}

// UpdateLineItem rewrites the mutable fields of an unpaid item.
func (r *MongoDBRepository) UpdateLineItem(ctx context.Context, item *models.LineItem) error {
	oid, err := objectID("line item", item.ID)
	if err != nil {
		return err
	}
	item.UpdatedAt = r.now()
	res, err := r.lineItems(item.Flow).UpdateOne(ctx,
		bson.M{"_id": oid, "owner": item.OwnerID, "isPaid": false},
		bson.M{"$set": bson.M{
			"date":      item.Date.UTC(),
			"shift":     string(item.Shift),
			"quantity":  item.Quantity,
			"rate":      item.Rate,
			"amount":    item.Amount,
			"updatedAt": item.UpdatedAt,
		}})
	if err != nil {
		return fmt.Errorf("update line item %s: %w", item.ID, err)
	}
	if res.MatchedCount == 0 {
		return r.unpaidMiss(ctx, item.Flow, item.OwnerID, item.ID)
	}
	return nil
}

// DeleteLineItem removes an unpaid item.
func (r *MongoDBRepository) DeleteLineItem(ctx context.Context, flow models.Flow, ownerID, itemID string) error {
	oid, err := objectID("line item", itemID)
	if err != nil {
		return err
	}
	res, err := r.lineItems(flow).DeleteOne(ctx, bson.M{"_id": oid, "owner": ownerID, "isPaid": false})
	if err != nil {
		return fmt.Errorf("delete line item %s: %w", itemID, err)
	}
	if res.DeletedCount == 0 {
		return r.unpaidMiss(ctx, flow, ownerID, itemID)
	}
	return nil
}

// MarkLineItemsPaid flips the listed unpaid items to paid.
func (r *MongoDBRepository) MarkLineItemsPaid(ctx context.Context, flow models.Flow, ownerID, counterpartyID string, itemIDs []string, settlementID string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	counterparty, err := objectID(string(flow), counterpartyID)
	if err != nil {
		return 0, err
	}
	res, err := r.lineItems(flow).UpdateMany(ctx,
		bson.M{
			"_id":          bson.M{"$in": objectIDs(itemIDs)},
			"owner":        ownerID,
			"counterparty": counterparty,
			"isPaid":       false,
		},
		bson.M{"$set": bson.M{"isPaid": true, "settlementId": settlementID, "updatedAt": r.now()}})
	if err != nil {
		return 0, fmt.Errorf("mark line items paid: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoDBRepository) unpaidMiss(ctx context.Context, flow models.Flow, ownerID, itemID string) error {
	item, err := r.GetLineItem(ctx, flow, ownerID, itemID)
	if err != nil {
		return err
	}
	if item.IsPaid {
		return fmt.Errorf("line item %s: %w", itemID, models.ErrItemSettled)
	}
	return fmt.Errorf("line item %s changed concurrently: %w", itemID, models.ErrConcurrentUpdate)
}
