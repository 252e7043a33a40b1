package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface so it can be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new trip and returns it with id, revision and timestamps
	// populated. A duplicate trip code yields domain.ErrConflict.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID returns domain.ErrNotFound if no trip has that id.
	GetByID(ctx context.Context, id string) (domain.Trip, error)

	// GetByCode looks a trip up by its trip code.
	// Returns domain.ErrNotFound if no trip has that code.
	GetByCode(ctx context.Context, code string) (domain.Trip, error)

	// List returns all trips ordered by trip code descending.
	List(ctx context.Context) ([]domain.Trip, error)

	// ListCodesByPrefix returns the trip codes starting with prefix.
	ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error)

	// Update overwrites the mutable fields of a trip if its stored revision
	// still equals trip.Revision, and bumps the revision. A stale revision
	// yields domain.ErrConflict, a missing trip domain.ErrNotFound.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// Delete removes a trip by id. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripSelect = `
		SELECT id, trip_code, date_time, vehicle_assigned, driver_name, estimated_arrival,
		       personnel, purpose, destination, request_ids, status, completed_date,
		       revision, created_at, updated_at
		FROM trips`

const tripReturning = `
		RETURNING id, trip_code, date_time, vehicle_assigned, driver_name, estimated_arrival,
		          personnel, purpose, destination, request_ids, status, completed_date,
		          revision, created_at, updated_at`

func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	const q = `
		INSERT INTO trips (trip_code, date_time, vehicle_assigned, driver_name, estimated_arrival,
		                   personnel, purpose, destination, request_ids, status, completed_date)
		VALUES (@trip_code, @date_time, @vehicle_assigned, @driver_name, @estimated_arrival,
		        @personnel, @purpose, @destination, @request_ids, @status, @completed_date)` + tripReturning

	got, err := scanTrip(r.db.QueryRow(ctx, q, tripArgs(trip)))
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: trip code %s already exists", domain.ErrConflict, trip.TripCode)
		}
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", err)
	}
	return got, nil
}

func (r *pgTripRepo) GetByID(ctx context.Context, id string) (domain.Trip, error) {
	uid, err := parseID(id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}

	got, err := scanTrip(r.db.QueryRow(ctx, tripSelect+` WHERE id = @id`, pgx.NamedArgs{"id": uid}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return got, nil
}

func (r *pgTripRepo) GetByCode(ctx context.Context, code string) (domain.Trip, error) {
	got, err := scanTrip(r.db.QueryRow(ctx, tripSelect+` WHERE trip_code = @code`, pgx.NamedArgs{"code": code}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByCode: %w", err)
	}
	return got, nil
}

func (r *pgTripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, tripSelect+` ORDER BY trip_code DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	defer rows.Close()

	trips := []domain.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.TripRepo.List: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripRepo.List: rows: %w", err)
	}
	return trips, nil
}

func (r *pgTripRepo) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	const q = `SELECT trip_code FROM trips WHERE trip_code LIKE @pattern ORDER BY trip_code`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"pattern": escapeLike(prefix) + "%"})
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListCodesByPrefix: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.TripRepo.ListCodesByPrefix: %w", err)
	}
	return codes, nil
}

func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	got, err := updateTrip(ctx, r.db, trip)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", err)
	}
	return got, nil
}

func (r *pgTripRepo) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = @id`, pgx.NamedArgs{"id": uid})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func updateTrip(ctx context.Context, db db, trip domain.Trip) (domain.Trip, error) {
	uid, err := parseID(trip.ID)
	if err != nil {
		return domain.Trip{}, err
	}

	const q = `
		UPDATE trips
		SET trip_code         = @trip_code,
		    date_time         = @date_time,
		    vehicle_assigned  = @vehicle_assigned,
		    driver_name       = @driver_name,
		    estimated_arrival = @estimated_arrival,
		    personnel         = @personnel,
		    purpose           = @purpose,
		    destination       = @destination,
		    request_ids       = @request_ids,
		    status            = @status,
		    completed_date    = @completed_date,
		    revision          = revision + 1,
		    updated_at        = now()
		WHERE id = @id AND revision = @revision` + tripReturning

	args := tripArgs(trip)
	args["id"] = uid
	args["revision"] = trip.Revision

	got, err := scanTrip(db.QueryRow(ctx, q, args))
	if errors.Is(err, domain.ErrNotFound) {
		var exists bool
		lookup := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = @id)`, pgx.NamedArgs{"id": uid})
		if lerr := lookup.Scan(&exists); lerr != nil {
			return domain.Trip{}, lerr
		}
		if exists {
			return domain.Trip{}, fmt.Errorf("%w: trip %s changed since revision %d", domain.ErrConflict, trip.TripCode, trip.Revision)
		}
		return domain.Trip{}, domain.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Trip{}, fmt.Errorf("%w: trip code %s already exists", domain.ErrConflict, trip.TripCode)
		}
		return domain.Trip{}, err
	}
	return got, nil
}

func tripArgs(t domain.Trip) pgx.NamedArgs {
	status := t.Status
	if status == "" {
		status = domain.TripNotFulfilled
	}
	return pgx.NamedArgs{
		"trip_code":         t.TripCode,
		"date_time":         t.DateTime,
		"vehicle_assigned":  t.VehicleAssigned,
		"driver_name":       t.DriverName,
		"estimated_arrival": t.EstimatedArrival,
		"personnel":         nonNil(t.Personnel),
		"purpose":           nonNil(t.Purpose),
		"destination":       t.Destination,
		"request_ids":       nonNil(t.RequestIDs),
		"status":            string(status),
		"completed_date":    dateArg(t.CompletedDate),
	}
}

func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t         domain.Trip
		id        pgtype.UUID
		completed pgtype.Date
		status    string
	)

	err := s.Scan(
		&id, &t.TripCode, &t.DateTime, &t.VehicleAssigned, &t.DriverName, &t.EstimatedArrival,
		&t.Personnel, &t.Purpose, &t.Destination, &t.RequestIDs, &status, &completed,
		&t.Revision, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, domain.ErrNotFound
		}
		return domain.Trip{}, err
	}

	t.ID = uuid.UUID(id.Bytes).String()
	t.Status = domain.TripStatus(status)
	if completed.Valid {
		d := completed.Time
		t.CompletedDate = &d
	}
	return t, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
