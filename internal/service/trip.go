package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// TripService implements business logic for Trip operations.
type TripService struct {
	repo   repo.TripRepo
	view   View[domain.Trip]
	clock  Clock
	loc    *time.Location
	logger *slog.Logger
}

// NewTripService constructs a TripService backed by the provided TripRepo.
// view may be nil.
func NewTripService(r repo.TripRepo, view View[domain.Trip], clock Clock, loc *time.Location, logger *slog.Logger) *TripService {
	return &TripService{repo: r, view: view, clock: clock, loc: loc, logger: logger}
}

// Get returns a single trip by id.
func (s *TripService) Get(ctx context.Context, id string) (domain.Trip, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, storeErr("service.TripService.Get", err)
	}
	return t, nil
}

// GetByCode returns the trip with the given YYMMDD-XXXX code.
func (s *TripService) GetByCode(ctx context.Context, code string) (domain.Trip, error) {
	code = strings.TrimSpace(code)
	if !domain.ValidTripCode(code) {
		return domain.Trip{}, storeErr("service.TripService.GetByCode", domain.Validationf("malformed trip code %q", code))
	}
	t, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return domain.Trip{}, storeErr("service.TripService.GetByCode", err)
	}
	return t, nil
}

// List returns one page of trips, newest code first.
func (s *TripService) List(ctx context.Context, p domain.PaginationParams) (Page[domain.Trip], error) {
	all, err := s.all(ctx)
	if err != nil {
		return Page[domain.Trip]{}, storeErr("service.TripService.List", err)
	}
	return Page[domain.Trip]{Items: domain.Window(all, p), Total: len(all)}, nil
}

// NextCode returns the next trip code for today in the configured zone.
// The code is not reserved; the unique index on trip_code settles races.
func (s *TripService) NextCode(ctx context.Context) (string, error) {
	now := s.clock.Now().In(s.loc)
	codes, err := s.repo.ListCodesByPrefix(ctx, domain.TripCodePrefix(now))
	if err != nil {
		return "", storeErr("service.TripService.NextCode", err)
	}
	return domain.NextTripCode(codes, now), nil
}

// SetStatus marks a trip Fulfilled or Not Fulfilled. Admin only.
func (s *TripService) SetStatus(ctx context.Context, p domain.Principal, id string, status domain.TripStatus) (domain.Trip, error) {
	const op = "service.TripService.SetStatus"
	if err := requireAdmin(op, p); err != nil {
		return domain.Trip{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Trip{}, storeErr(op, err)
	}
	next, err := domain.SetStatus(current, status, s.clock.Now().In(s.loc))
	if err != nil {
		return domain.Trip{}, storeErr(op, err)
	}
	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return domain.Trip{}, storeErr(op, err)
	}
	s.logger.InfoContext(ctx, "trip status changed", "trip_code", updated.TripCode, "status", updated.Status, "by", p.Name())
	return updated, nil
}

// Delete removes a trip. Requests approved into it keep their Approved
// status; the store clears their trip link. Admin only.
func (s *TripService) Delete(ctx context.Context, p domain.Principal, id string) error {
	const op = "service.TripService.Delete"
	if err := requireAdmin(op, p); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(op, err)
	}
	s.logger.InfoContext(ctx, "trip deleted", "trip_id", id, "by", p.Name())
	return nil
}

// Availability lists the vehicles committed to today's open trips.
func (s *TripService) Availability(ctx context.Context) ([]domain.VehicleBusy, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, storeErr("service.TripService.Availability", err)
	}
	return domain.BusyVehicles(all, s.clock.Now().In(s.loc)), nil
}

func (s *TripService) all(ctx context.Context) ([]domain.Trip, error) {
	if trips, ok := liveView(s.view); ok {
		return trips, nil
	}
	return s.repo.List(ctx)
}
