package domain

import (
	"context"
	"time"
)

// UserChanges is a partial update: nil fields are left untouched. The mongo
// layer converts set fields into a single atomic $set.
type UserChanges struct {
	ClerkID   *string
	Email     *string
	FirstName *string
	LastName  *string
	Username  *string
	AvatarURL *string
	Role      *UserRole
	Plan      *UserPlan
	Status    *UserStatus
	UpdatedAt *time.Time
}

// UserListQuery drives the admin listing endpoint.
type UserListQuery struct {
	Search   string
	Role     UserRole
	Plan     UserPlan
	Status   UserStatus
	SortBy   string // name | role | status | plan | joinDate
	SortAsc  bool
	Page     int64
	PageSize int64
}

// Normalized returns the query with Page and PageSize clamped to their
// effective bounds. Store and service both work from the same values, so the
// page echoed back to the caller matches what was queried.
func (q UserListQuery) Normalized() UserListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// UserRepository is the persistence contract for the users collection.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByClerkID(ctx context.Context, clerkID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpdateByClerkID applies changes atomically and returns the updated
	// document, or ErrUserNotFound when no document matches.
	UpdateByClerkID(ctx context.Context, clerkID string, changes UserChanges) (*User, error)
	DeleteByClerkID(ctx context.Context, clerkID string) error
	List(ctx context.Context, q UserListQuery) ([]*User, int64, error)
}

// ActivityRepository is the persistence contract for the activity log.
type ActivityRepository interface {
	Append(ctx context.Context, entry *ActivityLogEntry) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]*ActivityLogEntry, error)
}
