// Package service contains the business logic of the vehicle request API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No queries live here: services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
)

// Clock reports the current instant. Tests pass a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// View is the read side of a live synchronizer.
type View[T any] interface {
	View() []T
	State() livesync.State
}

// CatalogSource returns the current reference lists.
type CatalogSource interface {
	Get(ctx context.Context) (domain.Catalog, error)
}

// Page is one window of a list plus the size of the full list.
type Page[T any] struct {
	Items []T
	Total int
}

// liveView returns the view's documents, or false when the view has not
// completed its initial load (or is gone) and the store must be read instead.
func liveView[T any](v View[T]) ([]T, bool) {
	if v == nil || v.State() != livesync.StateLive {
		return nil, false
	}
	return v.View(), true
}

// storeErr prefixes err with op. Errors outside the domain taxonomy come
// from the datastore itself and are classified as transient.
func storeErr(op string, err error) error {
	if domain.IsDomainError(err) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransientStore, err)
}

func requireAdmin(op string, p domain.Principal) error {
	if !p.Admin {
		return fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	return nil
}

// dayBounds returns local midnight of t's day and the following midnight.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
