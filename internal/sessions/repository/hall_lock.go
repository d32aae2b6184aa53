package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"confdesk/pkg/config"
	"confdesk/pkg/model"
)

const HallLockCollection = "Hall_locks"

// HallLockRepository provides per-hall advisory locks. A duplicate key error
// on Create means another request is scheduling the same hall right now.
type HallLockRepository interface {
	Create(ctx context.Context, lock *model.HallLock) (*model.HallLock, error)
	Delete(ctx context.Context, lockID string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoHallLockRepository struct {
	collection *mongo.Collection
}

func NewHallLockRepository(cfg *config.Config) HallLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHallLockRepository{
		collection: db.Collection(HallLockCollection),
	}
}

func (r *mongoHallLockRepository) Create(ctx context.Context, lock *model.HallLock) (*model.HallLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

func (r *mongoHallLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}

// EnsureIndexes adds the TTL index that reaps abandoned locks.
func (r *mongoHallLockRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create hall lock indexes: %w", err)
	}
	return nil
}
