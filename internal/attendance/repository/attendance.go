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
)

const AttendanceCollection = "Attendance"

type AttendanceRepository interface {
	// Upsert records a check-in. The first scan for a (session, user) pair
	// inserts; later scans update scanned_at and metadata in place. The bool
	// result reports whether this call inserted.
	Upsert(ctx context.Context, sessionID, userID, eventID, method string, metadata map[string]string, scannedAt time.Time) (*model.AttendanceRecord, bool, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoAttendanceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAttendanceRepository(cfg *config.Config) AttendanceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAttendanceRepository{
		cfg:        cfg,
		collection: db.Collection(AttendanceCollection),
	}
}

func (r *mongoAttendanceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Upsert is a single atomic write; two concurrent scans of the same badge
// race harmlessly into one insert plus one update. The unique index on
// (session_id, user_id) backstops the filter.
func (r *mongoAttendanceRepository) Upsert(ctx context.Context, sessionID, userID, eventID, method string, metadata map[string]string, scannedAt time.Time) (*model.AttendanceRecord, bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"session_id": sessionID, "user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"scanned_at": scannedAt,
			"method":     method,
			"metadata":   metadata,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID(),
			"session_id": sessionID,
			"user_id":    userID,
			"event_id":   eventID,
			"created_at": scannedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert attendance record: %w", err)
	}
	wasInsert := result.UpsertedCount == 1

	var record model.AttendanceRecord
	if err := r.collection.FindOne(ctx, filter).Decode(&record); err != nil {
		return nil, false, fmt.Errorf("failed to read back attendance record: %w", err)
	}
	return &record, wasInsert, nil
}

func (r *mongoAttendanceRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("failed to count attendance records: %w", err)
	}
	return count, nil
}

// EnsureIndexes creates the unique (session_id, user_id) index that enforces
// one ledger entry per attendee per session.
func (r *mongoAttendanceRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "user_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create attendance indexes: %w", err)
	}
	return nil
}
