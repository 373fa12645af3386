package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rivalwatch/internal/constants"
)

// EnsureMongoIndexes creates the indexes used by the config, snapshot and
// result collections. Existing indexes are left alone.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		constants.MongoConfigCollection: {
			{
				Keys:    bson.D{{Key: "last_updated", Value: -1}},
				Options: options.Index().SetName("idx_monitoring_configs_last_updated"),
			},
		},
		constants.MongoSnapshotCollection: {
			{
				Keys:    bson.D{{Key: "keyword", Value: 1}, {Key: "competitor", Value: 1}},
				Options: options.Index().SetName("idx_competitor_snapshots_pair").SetUnique(true),
			},
		},
		constants.MongoResultCollection: {
			{
				Keys:    bson.D{{Key: "checked_at", Value: -1}},
				Options: options.Index().SetName("idx_monitoring_results_checked_at"),
			},
		},
	}

	for collection, indexes := range specs {
		_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}

	return nil
}
