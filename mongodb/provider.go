package mongodb

import (
	"context"
	"errors"
	"fmt"
)

// Stores bundles the document-backed repositories over the shared client, so
// callers wire one value instead of each store separately.
type Stores struct {
	Users    *UserStore
	Activity *ActivityStore
}

// NewStores establishes the shared connection and initializes every store,
// ensuring their indexes.
func NewStores(ctx context.Context, uri, dbName string) (*Stores, error) {
	if uri == "" || dbName == "" {
		return nil, errors.New("mongo uri and database name must be provided")
	}
	if err := Connect(ctx, uri, dbName); err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	db := GetDB()

	users, err := NewUserStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("initializing user store: %w", err)
	}
	activity, err := NewActivityStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("initializing activity store: %w", err)
	}

	return &Stores{Users: users, Activity: activity}, nil
}

// Close tears down the shared client.
func (s *Stores) Close(ctx context.Context) error {
	return Reset(ctx)
}
