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

type snapshotDocument struct {
	Keyword    string           `bson:"keyword"`
	Competitor string           `bson:"competitor"`
	Current    *ProductSnapshot `bson:"current,omitempty"`
	Previous   *ProductSnapshot `bson:"previous,omitempty"`
}

type MongoSnapshotRepository struct {
	snapshots *mongo.Collection
	results   *mongo.Collection
}

func NewMongoSnapshotRepository(db *mongo.Database) *MongoSnapshotRepository {
	return &MongoSnapshotRepository{
		snapshots: db.Collection(constants.MongoSnapshotCollection),
		results:   db.Collection(constants.MongoResultCollection),
	}
}

// errCodeIllegalOperation is what a standalone server answers to a
// transaction.
const errCodeIllegalOperation = 20

// CommitCycle writes every shift and the result in one transaction. A
// standalone server cannot run transactions; there the result is written
// first and the shifts after it, so a failure can repeat a change in the
// next cycle but never drops one.
func (r *MongoSnapshotRepository) CommitCycle(ctx context.Context, result *MonitoringResult, snaps []ProductSnapshot) (err error) {
	defer observeStore(storeSnapshot, constants.BackendMongoDB, "commit", time.Now(), &err)

	session, err := r.snapshots.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, r.writeCycle(sc, result, snaps)
	})
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(errCodeIllegalOperation) {
		err = r.writeCycle(ctx, result, snaps)
	}
	if err != nil {
		return fmt.Errorf("failed to commit check cycle: %w", err)
	}
	return nil
}

func (r *MongoSnapshotRepository) writeCycle(ctx context.Context, result *MonitoringResult, snaps []ProductSnapshot) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.results.ReplaceOne(ctx, bson.M{"_id": result.Keyword}, result, opts); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	for _, snap := range snaps {
		if err := r.shift(ctx, result.Keyword, snap); err != nil {
			return err
		}
	}
	return nil
}

// shift runs as a single pipeline update on one document, so the
// previous/current pair is never observed half written.
func (r *MongoSnapshotRepository) shift(ctx context.Context, keyword string, snap ProductSnapshot) error {
	filter := bson.M{"keyword": keyword, "competitor": snap.Competitor}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "previous", Value: "$current"},
			// $literal keeps product names starting with "$" from being read
			// as field paths.
			{Key: "current", Value: bson.M{"$literal": snap}},
		}}},
	}

	if _, err := r.snapshots.UpdateOne(ctx, filter, pipeline, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to shift snapshot: %w", err)
	}
	return nil
}

func (r *MongoSnapshotRepository) GetSnapshots(ctx context.Context, keyword, competitor string) (_ *ProductSnapshot, _ *ProductSnapshot, err error) {
	defer observeStore(storeSnapshot, constants.BackendMongoDB, "get", time.Now(), &err)

	var doc snapshotDocument
	err = r.snapshots.FindOne(ctx, bson.M{"keyword": keyword, "competitor": competitor}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	return doc.Current, doc.Previous, nil
}

func (r *MongoSnapshotRepository) LatestResult(ctx context.Context, keyword string) (_ *MonitoringResult, err error) {
	defer observeStore(storeSnapshot, constants.BackendMongoDB, "latest_result", time.Now(), &err)

	var result MonitoringResult
	err = r.results.FindOne(ctx, bson.M{"_id": keyword}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}

	return &result, nil
}
