package livesync

import (
	"log/slog"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// NewRequests returns a synchronizer for the requests collection, ordered
// by status rank then newest first.
func NewRequests(logger *slog.Logger) *Synchronizer[domain.Request] {
	return New(Options[domain.Request]{
		Name:    "requests",
		Key:     func(r domain.Request) string { return r.ID },
		Compare: domain.CompareRequests,
		Logger:  logger,
	})
}

// NewTrips returns a synchronizer for the trips collection, ordered by trip
// code descending.
func NewTrips(logger *slog.Logger) *Synchronizer[domain.Trip] {
	return New(Options[domain.Trip]{
		Name:    "trips",
		Key:     func(t domain.Trip) string { return t.ID },
		Compare: domain.CompareTrips,
		Logger:  logger,
	})
}
