package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rivalwatch/internal/constants"
)

type MongoConfigRepository struct {
	collection *mongo.Collection
}

func NewMongoConfigRepository(db *mongo.Database) *MongoConfigRepository {
	return &MongoConfigRepository{collection: db.Collection(constants.MongoConfigCollection)}
}

func (r *MongoConfigRepository) SaveConfig(ctx context.Context, cfg *MonitoringConfig) (err error) {
	defer observeStore(storeConfig, constants.BackendMongoDB, "save", time.Now(), &err)

	update := bson.M{
		"$set": bson.M{
			"competitors":       cfg.Competitors,
			"monitor_frequency": cfg.MonitorFrequency,
			"alert_thresholds":  cfg.AlertThresholds,
			"last_updated":      cfg.LastUpdated,
		},
		"$setOnInsert": bson.M{
			"created_at": cfg.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved MonitoringConfig
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": cfg.Keyword}, update, opts).Decode(&saved); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cfg.CreatedAt = saved.CreatedAt

	return nil
}

func (r *MongoConfigRepository) GetConfig(ctx context.Context, keyword string) (_ *MonitoringConfig, err error) {
	defer observeStore(storeConfig, constants.BackendMongoDB, "get", time.Now(), &err)

	var cfg MonitoringConfig
	err = r.collection.FindOne(ctx, bson.M{"_id": keyword}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &cfg, nil
}

func (r *MongoConfigRepository) ListConfigs(ctx context.Context) (_ []MonitoringConfig, err error) {
	defer observeStore(storeConfig, constants.BackendMongoDB, "list", time.Now(), &err)

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer cursor.Close(ctx)

	configs := []MonitoringConfig{}
	if err := cursor.All(ctx, &configs); err != nil {
		return nil, fmt.Errorf("failed to decode configs: %w", err)
	}

	return configs, nil
}

func (r *MongoConfigRepository) DeleteConfig(ctx context.Context, keyword string) (err error) {
	defer observeStore(storeConfig, constants.BackendMongoDB, "delete", time.Now(), &err)

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": keyword}); err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}
