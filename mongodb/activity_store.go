package mongodb

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/helioslabs/userhub/domain"
)

// ActivityStore implements domain.ActivityRepository. Entries are write-once;
// nothing in this subsystem updates or deletes them.
type ActivityStore struct {
	repo *Repository[domain.ActivityLogEntry]
}

// NewActivityStore creates the activity store and ensures its indexes.
func NewActivityStore(ctx context.Context, db *mongo.Database) (*ActivityStore, error) {
	store := &ActivityStore{repo: NewRepository[domain.ActivityLogEntry](db, ActivityCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "action", Value: 1}},
			Options: options.Index(),
		},
	}
	opts := options.CreateIndexes()
	if _, err := store.repo.Collection().Indexes().CreateMany(ctx, indexModels, opts); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for activity_log collection (might already exist)")
	}
	return store, nil
}

// Append persists one activity entry.
func (s *ActivityStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	if entry.ID == "" {
		entry.ID = NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.repo.Create(ctx, entry)
}

// ListByUser returns the most recent entries for one user.
func (s *ActivityStore) ListByUser(ctx context.Context, userID string, limit int64) ([]*domain.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	findOptions := options.Find()
	findOptions.SetLimit(limit)
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.repo.Find(ctx, bson.M{"user_id": userID}, findOptions)
}

// Ensure interface compliance
var _ domain.ActivityRepository = (*ActivityStore)(nil)
