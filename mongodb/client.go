package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	UsersCollection    = "users"
	ActivityCollection = "activity_log"
)

var (
	connMu         sync.Mutex
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
)

// Connect lazily establishes the process-wide MongoDB connection. The first
// caller performs the connect and ping while holding the lock; concurrent
// callers block on the same attempt instead of opening duplicate connections.
// Calling Connect again after a successful connect is a no-op.
func Connect(ctx context.Context, uri, dbName string) error {
	connMu.Lock()
	defer connMu.Unlock()

	if clientInstance != nil {
		return nil
	}

	log.Info().Str("uri", uri).Msg("Initializing MongoDB client")
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)
	clientOptions.SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB")
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Error().Err(err).Msg("Failed to ping MongoDB primary")
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return err
	}

	clientInstance = client
	dbInstance = client.Database(dbName)
	log.Info().Str("db", dbName).Msg("MongoDB client initialized")
	return nil
}

// GetDB returns the MongoDB database instance established by Connect.
func GetDB() *mongo.Database {
	connMu.Lock()
	defer connMu.Unlock()
	if dbInstance == nil {
		log.Fatal().Msg("MongoDB database instance is not initialized. Call Connect first.")
	}
	return dbInstance
}

// Ping sends a ping to the MongoDB server using the shared client.
// This is useful for health checks.
func Ping(ctx context.Context) error {
	connMu.Lock()
	client := clientInstance
	connMu.Unlock()
	if client == nil {
		return errors.New("mongodb client is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// Reset disconnects and clears the shared client so the next Connect starts
// fresh. Tests use it for isolation; production code calls it on shutdown.
func Reset(ctx context.Context) error {
	connMu.Lock()
	defer connMu.Unlock()
	if clientInstance == nil {
		return nil
	}
	log.Info().Msg("Closing MongoDB connection")
	err := clientInstance.Disconnect(ctx)
	clientInstance = nil
	dbInstance = nil
	return err
}
