package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/dairy/internal/domain/models"
	"github.com/mamadbah2/dairy/internal/repository"
)

const (
	farmersCollection        = "farmers"
	membersCollection        = "members"
	collectionsCollection    = "collections"
	sellingEntriesCollection = "selling_entries"
	paymentsCollection       = "payments"
	memberPaymentsCollection = "member_payments"
	advancesCollection       = "advances"
)

// MongoDBRepository implements repository.Store for MongoDB.
//
// With transactions enabled (requires a replica set) every unit of work runs
// in a multi-document transaction. Without them the writes of a unit of work
// are applied in order and the settlement record, written first, is the
// durable source of truth the reconciliation job replays from.
type MongoDBRepository struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	logger       *zap.Logger
	now          func() time.Time
}

var _ repository.Store = (*MongoDBRepository)(nil)

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri, dbName string, transactions bool, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(newRegistry())
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	r := &MongoDBRepository{
		client:       client,
		db:           client.Database(dbName),
		transactions: transactions,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	if !transactions {
		logger.Warn("mongodb transactions disabled, settlements commit in best-effort order")
	}
	return r, nil
}

// WithinTx runs fn in a multi-document transaction when enabled.
func (r *MongoDBRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Writer) error) error {
	if !r.transactions {
		return fn(ctx, r)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, r)
	})
	return err
}

// Transactional reports whether units of work are atomic.
func (r *MongoDBRepository) Transactional() bool {
	return r.transactions
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		farmersCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "code", Value: 1}}},
		},
		membersCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "code", Value: 1}}},
		},
		collectionsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "counterparty", Value: 1}, {Key: "isPaid", Value: 1}, {Key: "date", Value: 1}}},
		},
		sellingEntriesCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "counterparty", Value: 1}, {Key: "isPaid", Value: 1}, {Key: "date", Value: 1}}},
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "counterparty", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("one_entry_per_day"),
			},
		},
		paymentsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "counterparty", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		memberPaymentsCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "counterparty", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		advancesCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "farmer", Value: 1}, {Key: "status", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (r *MongoDBRepository) counterparties(flow models.Flow) *mongo.Collection {
	if flow == models.FlowFarmer {
		return r.db.Collection(farmersCollection)
	}
	return r.db.Collection(membersCollection)
}

func (r *MongoDBRepository) lineItems(flow models.Flow) *mongo.Collection {
	if flow == models.FlowFarmer {
		return r.db.Collection(collectionsCollection)
	}
	return r.db.Collection(sellingEntriesCollection)
}

func (r *MongoDBRepository) settlements(flow models.Flow) *mongo.Collection {
	if flow == models.FlowFarmer {
		return r.db.Collection(paymentsCollection)
	}
	return r.db.Collection(memberPaymentsCollection)
}

func (r *MongoDBRepository) advances() *mongo.Collection {
	return r.db.Collection(advancesCollection)
}

// objectID parses a hex id; malformed ids cannot exist and read as not found.
func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return oid, nil
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func lookupError(kind, id string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
