package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"confdesk/pkg/config"
	"confdesk/pkg/model"
	"confdesk/pkg/sanitizer"
)

const UserCollection = "Users"

type UserRepository interface {
	// ResolveOrCreate returns the user with the given email, provisioning a
	// minimal record if none exists yet.
	ResolveOrCreate(ctx context.Context, email, displayName string) (*model.User, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(UserCollection),
	}
}

func (r *mongoUserRepository) ResolveOrCreate(ctx context.Context, email, displayName string) (*model.User, error) {
	if _, ok := ctx.(mongo.SessionContext); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()
	}

	email = sanitizer.NormalizeEmail(email)

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"email":        email,
			"display_name": sanitizer.TrimAndNormalize(displayName),
			"created_at":   time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user model.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user by email: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}
