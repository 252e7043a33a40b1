package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// ChangeStreamFeed is a livesync.Source driven by a collection change
// stream. Each batch of change events triggers one full re-read. Change
// streams only report majority-committed writes, so snapshots are durable.
type ChangeStreamFeed[T any] struct {
	coll   *mongo.Collection
	list   func(ctx context.Context) ([]T, error)
	logger *slog.Logger

	// RetryDelay is the pause before reopening a failed change stream or
	// retrying a failed re-read.
	RetryDelay time.Duration
}

// NewRequestFeed returns a change stream feed over the requests collection.
func NewRequestFeed(db *DB, logger *slog.Logger) *ChangeStreamFeed[domain.Request] {
	store := NewRequestStore(db)
	return &ChangeStreamFeed[domain.Request]{
		coll: db.Collection(RequestsCollection),
		list: func(ctx context.Context) ([]domain.Request, error) {
			return store.List(ctx, repo.RequestFilter{})
		},
		logger:     logger,
		RetryDelay: 2 * time.Second,
	}
}

// NewTripFeed returns a change stream feed over the trips collection.
func NewTripFeed(db *DB, logger *slog.Logger) *ChangeStreamFeed[domain.Trip] {
	return &ChangeStreamFeed[domain.Trip]{
		coll:       db.Collection(TripsCollection),
		list:       NewTripStore(db).List,
		logger:     logger,
		RetryDelay: 2 * time.Second,
	}
}

// Subscribe opens the change stream before the first read so no write can
// fall between them.
func (f *ChangeStreamFeed[T]) Subscribe(ctx context.Context) (<-chan livesync.Snapshot[T], error) {
	cs, err := f.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("mongostore.ChangeStreamFeed.Subscribe: watch: %w", err)
	}
	first, err := f.list(ctx)
	if err != nil {
		_ = cs.Close(ctx)
		return nil, fmt.Errorf("mongostore.ChangeStreamFeed.Subscribe: initial read: %w", err)
	}

	out := make(chan livesync.Snapshot[T], 1)
	out <- livesync.Snapshot[T]{Docs: first}
	go f.loop(ctx, cs, out)
	return out, nil
}

func (f *ChangeStreamFeed[T]) loop(ctx context.Context, cs *mongo.ChangeStream, out chan<- livesync.Snapshot[T]) {
	defer close(out)
	defer func() {
		if cs != nil {
			_ = cs.Close(context.Background())
		}
	}()

	for {
		if cs == nil {
			var err error
			if cs, err = f.reopen(ctx); err != nil {
				return
			}
		} else if !cs.Next(ctx) {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("change stream ended", "collection", f.coll.Name(), "error", cs.Err())
			_ = cs.Close(ctx)
			cs = nil
			continue
		}
		// Fold events already buffered into this re-read.
		for cs.TryNext(ctx) {
		}

		docs, err := repo.ReadRetrying(ctx, f.list, f.RetryDelay, func(err error) {
			f.logger.Error("change stream read failed", "collection", f.coll.Name(), "error", err)
		})
		if err != nil {
			return
		}
		select {
		case out <- livesync.Snapshot[T]{Docs: docs}:
		case <-ctx.Done():
			return
		}
	}
}

func (f *ChangeStreamFeed[T]) reopen(ctx context.Context) (*mongo.ChangeStream, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.RetryDelay):
		}
		cs, err := f.coll.Watch(ctx, mongo.Pipeline{})
		if err == nil {
			f.logger.Info("change stream reopened", "collection", f.coll.Name())
			return cs, nil
		}
		f.logger.Warn("change stream reopen failed", "collection", f.coll.Name(), "error", err)
	}
}
