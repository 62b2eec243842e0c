package mongodb

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/helioslabs/userhub/domain"
)

// Page describes skip/limit/sort for paginated queries.
type Page struct {
	Skip  int64
	Limit int64
	Sort  bson.D
}

// Repository is a generic document repository over a single collection.
// Specialized stores compose it and add their own query helpers; there is no
// subclassing. Every operation is one independent document-store call, no
// transactions are used.
type Repository[T any] struct {
	coll *mongo.Collection
}

// NewRepository creates a repository bound to the named collection.
func NewRepository[T any](db *mongo.Database, collection string) *Repository[T] {
	return &Repository[T]{coll: db.Collection(collection)}
}

// Collection exposes the underlying collection for index bootstrap.
func (r *Repository[T]) Collection() *mongo.Collection {
	return r.coll
}

// Create inserts one document. Unique index violations map to domain.ErrDuplicate.
func (r *Repository[T]) Create(ctx context.Context, doc *T) error {
	_, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error inserting document")
		return err
	}
	return nil
}

// FindByID retrieves one document by its _id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

// FindOne retrieves the first document matching filter.
func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error finding document")
		return nil, err
	}
	return &doc, nil
}

// Find retrieves all documents matching filter.
func (r *Repository[T]) Find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error querying documents")
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*T
	if err := cursor.All(ctx, &docs); err != nil {
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error decoding documents")
		return nil, err
	}
	return docs, nil
}

// FindPage retrieves one page of documents plus the total match count. The
// count companion query runs concurrently with the find.
func (r *Repository[T]) FindPage(ctx context.Context, filter bson.M, page Page) ([]*T, int64, error) {
	findOptions := options.Find()
	findOptions.SetSkip(page.Skip)
	findOptions.SetLimit(page.Limit)
	if len(page.Sort) > 0 {
		findOptions.SetSort(page.Sort)
	}

	var (
		docs  []*T
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = r.Find(gctx, filter, findOptions)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.coll.CountDocuments(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// UpdateByID applies a $set update to the document with the given _id.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, set bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		log.Error().Err(err).Str("collection", r.coll.Name()).Str("id", id).Msg("Error updating document")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateOne atomically applies a $set update to the first document matching
// filter and returns the updated document.
func (r *Repository[T]) UpdateOne(ctx context.Context, filter, set bson.M) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicate
		}
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error updating document")
		return nil, err
	}
	return &doc, nil
}

// DeleteByID removes the document with the given _id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		log.Error().Err(err).Str("collection", r.coll.Name()).Str("id", id).Msg("Error deleting document")
		return err
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMany removes every document matching filter and returns the count.
func (r *Repository[T]) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("collection", r.coll.Name()).Msg("Error deleting documents")
		return 0, err
	}
	return result.DeletedCount, nil
}

// Count returns the number of documents matching filter.
func (r *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return r.coll.CountDocuments(ctx, filter)
}

// Exists reports whether at least one document matches filter.
func (r *Repository[T]) Exists(ctx context.Context, filter bson.M) (bool, error) {
	opts := options.Count().SetLimit(1)
	n, err := r.coll.CountDocuments(ctx, filter, opts)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
