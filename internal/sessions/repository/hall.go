package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	sessionserrors "confdesk/internal/sessions/errors"
	"confdesk/pkg/config"
	"confdesk/pkg/model"
)

const HallCollection = "Halls"

// HallRepository is read-only here; hall CRUD lives in the dashboard layer.
type HallRepository interface {
	FindByID(ctx context.Context, id string) (*model.Hall, error)
}

type mongoHallRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoHallRepository(cfg *config.Config) HallRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoHallRepository{
		cfg:        cfg,
		collection: db.Collection(HallCollection),
	}
}

func (r *mongoHallRepository) FindByID(ctx context.Context, id string) (*model.Hall, error) {
	if _, ok := ctx.(mongo.SessionContext); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ReadTimeout)
		defer cancel()
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sessionserrors.ErrInvalidID, id)
	}

	var h model.Hall
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&h)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", sessionserrors.ErrHallNotFound, id)
		}
		return nil, fmt.Errorf("failed to find hall: %w", err)
	}

	return &h, nil
}
