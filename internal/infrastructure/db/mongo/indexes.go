package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// EnsureIndexes creates the indexes the repositories rely on.
//
// The partial index on predictions only covers pre-labeled records, so image
// predictions without a category never collide.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
	}
	if _, err := db.Collection(ports.CollectionUsers).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	predictions := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "category", Value: 1},
				{Key: "character", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_labeled").
				SetPartialFilterExpression(bson.M{"category": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection(ports.CollectionPredictions).Indexes().CreateMany(ctx, predictions); err != nil {
		return fmt.Errorf("predictions indexes: %w", err)
	}
	return nil
}
