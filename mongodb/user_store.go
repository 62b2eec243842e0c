package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/helioslabs/userhub/domain"
)

// UserStore implements domain.UserRepository on top of the generic repository.
type UserStore struct {
	repo *Repository[domain.User]
}

// NewUserStore creates the user store and ensures its indexes. The unique
// email and clerk_id indexes are the final backstop against duplicate
// documents when concurrent events race.
func NewUserStore(ctx context.Context, db *mongo.Database) (*UserStore, error) {
	store := &UserStore{repo: NewRepository[domain.User](db, UsersCollection)}
	if err := store.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create user indexes (might already exist with compatible options)")
	}
	return store, nil
}

func (s *UserStore) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			Keys:    bson.D{{Key: "clerk_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetUnique(false),
		},
	}

	opts := options.CreateIndexes()
	if _, err := s.repo.Collection().Indexes().CreateMany(ctx, indexModels, opts); err != nil {
		return fmt.Errorf("failed to create indexes for users collection: %w", err)
	}
	log.Info().Msg("Indexes for users collection ensured.")
	return nil
}

// Create inserts a new user, filling defaults the same way for every caller.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = NewObjectID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.Plan == "" {
		user.Plan = domain.PlanFree
	}
	return s.repo.Create(ctx, user)
}

// FindByID retrieves a user by its document id.
func (s *UserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return s.mapNotFound(s.repo.FindByID(ctx, id))
}

// FindByClerkID retrieves a user by its external identity id.
func (s *UserStore) FindByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	return s.mapNotFound(s.repo.FindOne(ctx, bson.M{"clerk_id": clerkID}))
}

// FindByEmail retrieves a user by email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.mapNotFound(s.repo.FindOne(ctx, bson.M{"email": email}))
}

// UpdateByClerkID applies the non-nil fields of changes as a single atomic
// find-and-update and returns the updated document.
func (s *UserStore) UpdateByClerkID(ctx context.Context, clerkID string, changes domain.UserChanges) (*domain.User, error) {
	set := changesToSet(changes)
	if _, ok := set["updated_at"]; !ok {
		set["updated_at"] = time.Now().UTC()
	}
	return s.mapNotFound(s.repo.UpdateOne(ctx, bson.M{"clerk_id": clerkID}, set))
}

// DeleteByClerkID hard-deletes the user owning the identity id. Only the
// explicit user-initiated delete endpoint calls this; the reconciliation path
// soft-deletes via UpdateByClerkID.
func (s *UserStore) DeleteByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.repo.Collection().DeleteOne(ctx, bson.M{"clerk_id": clerkID})
	if err != nil {
		log.Error().Err(err).Str("clerk_id", clerkID).Msg("Error deleting user")
		return err
	}
	if result.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns one page of users with the total match count.
func (s *UserStore) List(ctx context.Context, q domain.UserListQuery) ([]*domain.User, int64, error) {
	filter := bson.M{}
	if q.Search != "" {
		pattern := bson.M{"$regex": q.Search, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
			bson.M{"username": pattern},
		}
	}
	if q.Role != "" {
		filter["role"] = q.Role
	}
	if q.Plan != "" {
		filter["plan"] = q.Plan
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	q = q.Normalized()
	return s.repo.FindPage(ctx, filter, Page{
		Skip:  (q.Page - 1) * q.PageSize,
		Limit: q.PageSize,
		Sort:  sortFor(q.SortBy, q.SortAsc),
	})
}

func sortFor(sortBy string, asc bool) bson.D {
	dir := -1
	if asc {
		dir = 1
	}
	switch sortBy {
	case "name":
		return bson.D{{Key: "first_name", Value: dir}, {Key: "last_name", Value: dir}}
	case "role":
		return bson.D{{Key: "role", Value: dir}}
	case "status":
		return bson.D{{Key: "status", Value: dir}}
	case "subscription", "plan":
		return bson.D{{Key: "plan", Value: dir}}
	case "joinDate", "":
		return bson.D{{Key: "created_at", Value: dir}}
	default:
		return bson.D{{Key: "created_at", Value: dir}}
	}
}

func changesToSet(c domain.UserChanges) bson.M {
	set := bson.M{}
	if c.ClerkID != nil {
		set["clerk_id"] = *c.ClerkID
	}
	if c.Email != nil {
		set["email"] = *c.Email
	}
	if c.FirstName != nil {
		set["first_name"] = *c.FirstName
	}
	if c.LastName != nil {
		set["last_name"] = *c.LastName
	}
	if c.Username != nil {
		set["username"] = *c.Username
	}
	if c.AvatarURL != nil {
		set["avatar_url"] = *c.AvatarURL
	}
	if c.Role != nil {
		set["role"] = *c.Role
	}
	if c.Plan != nil {
		set["plan"] = *c.Plan
	}
	if c.Status != nil {
		set["status"] = *c.Status
	}
	if c.UpdatedAt != nil {
		set["updated_at"] = c.UpdatedAt.UTC()
	}
	return set
}

func (s *UserStore) mapNotFound(user *domain.User, err error) (*domain.User, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

// Ensure interface compliance
var _ domain.UserRepository = (*UserStore)(nil)
