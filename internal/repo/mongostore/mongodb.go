// Package mongostore implements the repo interfaces on MongoDB. It is the
// document-store backend selected with STORE_DRIVER=mongo. Approvals use
// multi-document transactions and live sync uses change streams, so the
// server must be a replica set.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Collection names.
const (
	RequestsCollection = "requests"
	TripsCollection    = "trips"
)

// DB wraps a connected client and the application database.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore.Connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore.Connect: ping: %w", err)
	}

	slog.Info("connected to mongodb", "database", database)
	return &DB{client: client, db: client.Database(database)}, nil
}

// Collection returns a handle to the named collection.
func (m *DB) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Drop removes the whole database. Tests use it for cleanup.
func (m *DB) Drop(ctx context.Context) error {
	return m.db.Drop(ctx)
}

// Close disconnects the client.
func (m *DB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes both collections rely on.
func (m *DB) EnsureIndexes(ctx context.Context) error {
	if _, err := m.Collection(TripsCollection).Indexes().CreateMany(ctx, tripIndexes()); err != nil {
		return fmt.Errorf("mongostore.EnsureIndexes: trips: %w", err)
	}
	if _, err := m.Collection(RequestsCollection).Indexes().CreateMany(ctx, requestIndexes()); err != nil {
		return fmt.Errorf("mongostore.EnsureIndexes: requests: %w", err)
	}
	return nil
}
