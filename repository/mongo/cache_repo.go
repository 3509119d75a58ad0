package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

const productCollectionName = "products"

type cacheStore struct {
	collection *mongo.Collection
}

// NewCacheStore returns a Mongo-backed implementation of CacheStore.
// Records are keyed by the ledger product id, not by ObjectID.
func NewCacheStore(db *mongo.Database) repository.CacheStore {
	return &cacheStore{collection: db.Collection(productCollectionName)}
}

// EnsureIndexes creates the product_id and owner indexes the read paths
// depend on. Safe to call on every boot.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(productCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	})
	return err
}

func (s *cacheStore) Get(ctx context.Context, productID int64) (*domain.CacheRecord, error) {
	var record domain.CacheRecord
	err := s.collection.FindOne(ctx, bson.M{"product_id": productID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find cached product: %w", err)
	}
	return &record, nil
}

func (s *cacheStore) Upsert(ctx context.Context, record *domain.CacheRecord) (*domain.CacheRecord, error) {
	if record == nil || record.Product.ID <= 0 {
		return nil, domain.ErrInvalidPayload
	}
	record.Touch(time.Now().UTC())

	set := bson.M{
		"name":         record.Product.Name,
		"quantity":     record.Product.Quantity,
		"harvest_date": record.Product.HarvestDate,
		"owner":        domain.NormalizeAddress(record.Product.Owner),
		"updated_at":   record.UpdatedAt,
	}
	if record.History != nil {
		set["history"] = record.History
	}
	if record.TxRef != "" {
		set["tx_ref"] = record.TxRef
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"product_id": record.Product.ID,
			"created_at": record.CreatedAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored domain.CacheRecord
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"product_id": record.Product.ID}, update, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cached product: %w", err)
	}
	return &stored, nil
}

func (s *cacheStore) ListRecent(ctx context.Context, limit int) ([]domain.CacheRecord, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached products: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.CacheRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cached products: %w", err)
	}
	if records == nil {
		records = []domain.CacheRecord{}
	}
	return records, nil
}

func (s *cacheStore) FindByIDs(ctx context.Context, ids []int64) ([]domain.CacheRecord, error) {
	if len(ids) == 0 {
		return []domain.CacheRecord{}, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"product_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find cached products: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.CacheRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cached products: %w", err)
	}
	if records == nil {
		records = []domain.CacheRecord{}
	}
	return records, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 50 {
		return 50
	}
	return limit
}
