package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// Store implements ports.DocumentStore on a MongoDB database. Records are
// stored as-is, so their bson tags must map the id to "_id".
type Store struct {
	db *mongo.Database
}

// NewStore creates a Store over db.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Put replaces the document stored under id, inserting it when absent.
func (s *Store) Put(ctx context.Context, collection, id string, record any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, record, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Insert creates a new document and fails on any unique index conflict.
func (s *Store) Insert(ctx context.Context, collection, id string, record any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := s.db.Collection(collection).InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get decodes the document stored under id into out.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query decodes all documents matching filters into out, newest first.
func (s *Store) Query(ctx context.Context, collection string, filters ports.Filters, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	for k, v := range filters {
		filter[k] = v
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("query %s: %w", collection, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("query %s: decode: %w", collection, err)
	}
	return nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}
