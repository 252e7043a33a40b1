package repo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
)

// Notification channels raised by the change_notify triggers.
const (
	RequestsChannel = "requests_changed"
	TripsChannel    = "trips_changed"
)

// ChangeFeed is a livesync.Source backed by Postgres LISTEN/NOTIFY. Every
// notification triggers a full re-read of the collection; notifications that
// arrive while a read is pending are coalesced into it.
//
// Notifications are only delivered after commit, so every snapshot it
// yields is durable.
type ChangeFeed[T any] struct {
	pool    *pgxpool.Pool
	channel string
	list    func(ctx context.Context) ([]T, error)
	logger  *slog.Logger

	// RetryDelay is the pause before re-listening after a lost connection
	// or retrying a failed re-read.
	RetryDelay time.Duration
	// Settle is how long to keep draining notifications before re-reading.
	Settle time.Duration
}

// NewRequestFeed returns a change feed over the requests table.
func NewRequestFeed(pool *pgxpool.Pool, logger *slog.Logger) *ChangeFeed[domain.Request] {
	repo := NewRequestRepo(pool)
	return newChangeFeed(pool, RequestsChannel, func(ctx context.Context) ([]domain.Request, error) {
		return repo.List(ctx, RequestFilter{})
	}, logger)
}

// NewTripFeed returns a change feed over the trips table.
func NewTripFeed(pool *pgxpool.Pool, logger *slog.Logger) *ChangeFeed[domain.Trip] {
	return newChangeFeed(pool, TripsChannel, NewTripRepo(pool).List, logger)
}

func newChangeFeed[T any](pool *pgxpool.Pool, channel string, list func(context.Context) ([]T, error), logger *slog.Logger) *ChangeFeed[T] {
	return &ChangeFeed[T]{
		pool:       pool,
		channel:    channel,
		list:       list,
		logger:     logger,
		RetryDelay: 2 * time.Second,
		Settle:     50 * time.Millisecond,
	}
}

// Subscribe starts listening and returns the snapshot stream. The first
// snapshot is read after LISTEN succeeds so no change can slip between them.
func (f *ChangeFeed[T]) Subscribe(ctx context.Context) (<-chan livesync.Snapshot[T], error) {
	conn, err := f.listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo.ChangeFeed.Subscribe: %w", err)
	}
	first, err := f.list(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("repo.ChangeFeed.Subscribe: initial read: %w", err)
	}

	out := make(chan livesync.Snapshot[T], 1)
	out <- livesync.Snapshot[T]{Docs: first}
	go f.loop(ctx, conn, out)
	return out, nil
}

func (f *ChangeFeed[T]) loop(ctx context.Context, conn *pgxpool.Conn, out chan<- livesync.Snapshot[T]) {
	defer close(out)
	defer func() {
		if conn != nil {
			conn.Release()
		}
	}()

	for {
		if conn == nil {
			var err error
			if conn, err = f.reconnect(ctx); err != nil {
				return
			}
		} else if err := f.wait(ctx, conn.Conn()); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("change feed connection lost", "channel", f.channel, "error", err)
			conn.Release()
			conn = nil
			continue
		}

		docs, err := ReadRetrying(ctx, f.list, f.RetryDelay, func(err error) {
			f.logger.Error("change feed read failed", "channel", f.channel, "error", err)
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

// wait blocks for one notification, then drains any that follow within Settle.
func (f *ChangeFeed[T]) wait(ctx context.Context, c *pgx.Conn) error {
	if _, err := c.WaitForNotification(ctx); err != nil {
		return err
	}
	for {
		settleCtx, cancel := context.WithTimeout(ctx, f.Settle)
		_, err := c.WaitForNotification(settleCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Settle deadline reached: no more queued notifications.
			return nil
		}
	}
}

func (f *ChangeFeed[T]) reconnect(ctx context.Context) (*pgxpool.Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.RetryDelay):
		}
		conn, err := f.listen(ctx)
		if err == nil {
			f.logger.Info("change feed reconnected", "channel", f.channel)
			return conn, nil
		}
		f.logger.Warn("change feed reconnect failed", "channel", f.channel, "error", err)
	}
}

func (f *ChangeFeed[T]) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", f.channel, err)
	}
	return conn, nil
}

// ReadRetrying calls list until it succeeds, pausing delay between attempts
// and reporting each failure to onErr. It only gives up when ctx is done,
// so a change that triggered the read is never dropped.
func ReadRetrying[T any](ctx context.Context, list func(context.Context) ([]T, error), delay time.Duration, onErr func(error)) ([]T, error) {
	for {
		docs, err := list(ctx)
		if err == nil {
			return docs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		onErr(err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
