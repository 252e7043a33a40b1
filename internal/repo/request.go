package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// RequestFilter narrows RequestRepo.List. Zero values mean "any".
type RequestFilter struct {
	Status        *domain.RequestStatus
	Department    string
	TripID        string
	CreatedFrom   *time.Time // inclusive
	CreatedBefore *time.Time // exclusive
}

// RequestRepo defines the persistence operations for Requests.
type RequestRepo interface {
	// Create inserts a request and returns it with the store-assigned id and
	// timestamps populated.
	Create(ctx context.Context, r domain.Request) (domain.Request, error)

	// GetByID returns domain.ErrNotFound if no request has that id.
	GetByID(ctx context.Context, id string) (domain.Request, error)

	// List returns the requests matching f, Pending first then newest first.
	List(ctx context.Context, f RequestFilter) ([]domain.Request, error)

	// Update overwrites the mutable fields of a request.
	// Returns domain.ErrNotFound if it does not exist.
	Update(ctx context.Context, r domain.Request) (domain.Request, error)

	// CompareAndUpdate writes next only while the stored request still has
	// the status and trip link of seen, the version next was derived from.
	// A request approved, moved or unlinked in between yields
	// domain.ErrConflict.
	CompareAndUpdate(ctx context.Context, seen, next domain.Request) (domain.Request, error)

	// Delete removes a request. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

type pgRequestRepo struct {
	db db
}

// NewRequestRepo constructs a RequestRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewRequestRepo(db db) RequestRepo {
	return &pgRequestRepo{db: db}
}

var requestColumns = []string{
	"id", "requester_name", "department", "requested_vehicle", "is_driver_requested",
	"delegated_driver_name", "purpose", "destination", "requested_date_time",
	"estimated_arrival", "remarks", "completed_date", "status", "trip_id",
	"issue_faced", "action_taken", "created_at", "updated_at",
}

const requestReturning = `
		RETURNING id, requester_name, department, requested_vehicle, is_driver_requested,
		          delegated_driver_name, purpose, destination, requested_date_time,
		          estimated_arrival, remarks, completed_date, status, trip_id,
		          issue_faced, action_taken, created_at, updated_at`

func (r *pgRequestRepo) Create(ctx context.Context, req domain.Request) (domain.Request, error) {
	const q = `
		INSERT INTO requests (requester_name, department, requested_vehicle, is_driver_requested,
		                      delegated_driver_name, purpose, destination, requested_date_time,
		                      estimated_arrival, remarks, completed_date, status, trip_id,
		                      issue_faced, action_taken, created_at)
		VALUES (@requester_name, @department, @requested_vehicle, @is_driver_requested,
		        @delegated_driver_name, @purpose, @destination, @requested_date_time,
		        @estimated_arrival, @remarks, @completed_date, @status, @trip_id,
		        @issue_faced, @action_taken, COALESCE(@created_at, now()))` + requestReturning

	args, err := requestArgs(req)
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Create: %w", err)
	}
	var createdAt *time.Time
	if !req.CreatedAt.IsZero() {
		createdAt = &req.CreatedAt
	}
	args["created_at"] = createdAt

	got, err := scanRequest(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Create: %w", err)
	}
	return got, nil
}

func (r *pgRequestRepo) GetByID(ctx context.Context, id string) (domain.Request, error) {
	uid, err := parseID(id)
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}

	q, args, err := psql.Select(requestColumns...).From("requests").Where(sq.Eq{"id": uid}).ToSql()
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.GetByID: build query: %w", err)
	}

	got, err := scanRequest(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.GetByID: %w", err)
	}
	return got, nil
}

func (r *pgRequestRepo) List(ctx context.Context, f RequestFilter) ([]domain.Request, error) {
	b := psql.Select(requestColumns...).From("requests")
	if f.Status != nil {
		b = b.Where(sq.Eq{"status": string(*f.Status)})
	}
	if f.Department != "" {
		b = b.Where(sq.Eq{"department": f.Department})
	}
	if f.TripID != "" {
		uid, err := parseID(f.TripID)
		if err != nil {
			return []domain.Request{}, nil
		}
		b = b.Where(sq.Eq{"trip_id": uid})
	}
	if f.CreatedFrom != nil {
		b = b.Where(sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedBefore != nil {
		b = b.Where(sq.Lt{"created_at": *f.CreatedBefore})
	}
	b = b.OrderBy(`CASE status
		WHEN 'Pending' THEN 1 WHEN 'Approved' THEN 2
		WHEN 'Rescheduled' THEN 3 WHEN 'Cancelled' THEN 4 ELSE 99 END`, "created_at DESC", "id")

	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.List: build query: %w", err)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.List: %w", err)
	}
	defer rows.Close()

	reqs := []domain.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RequestRepo.List: scan: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RequestRepo.List: rows: %w", err)
	}
	return reqs, nil
}

func (r *pgRequestRepo) Update(ctx context.Context, req domain.Request) (domain.Request, error) {
	got, err := updateRequest(ctx, r.db, req, nil)
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.Update: %w", err)
	}
	return got, nil
}

func (r *pgRequestRepo) CompareAndUpdate(ctx context.Context, seen, next domain.Request) (domain.Request, error) {
	got, err := updateRequest(ctx, r.db, next, unchangedSince(seen))
	if err != nil {
		return domain.Request{}, fmt.Errorf("repo.RequestRepo.CompareAndUpdate: %w", err)
	}
	return got, nil
}

func (r *pgRequestRepo) Delete(ctx context.Context, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return fmt.Errorf("repo.RequestRepo.Delete: %w", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM requests WHERE id = @id`, pgx.NamedArgs{"id": uid})
	if err != nil {
		return fmt.Errorf("repo.RequestRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RequestRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// requestGuard restricts an update to a row still in the state it was read
// in. A row that no longer matches yields mismatch.
type requestGuard struct {
	status    domain.RequestStatus
	tripID    *string
	checkTrip bool
	mismatch  error
}

// pendingStatus guards approvals: only a Pending request can be approved.
func pendingStatus() *requestGuard {
	return &requestGuard{status: domain.RequestPending, mismatch: domain.ErrInvalidState}
}

// unchangedSince guards edits against approvals and unlinks that landed
// after seen was read.
func unchangedSince(seen domain.Request) *requestGuard {
	return &requestGuard{status: seen.Status, tripID: seen.TripID, checkTrip: true, mismatch: domain.ErrConflict}
}

// updateRequest writes req. When guard is set the row is only updated while
// it still matches the guard.
func updateRequest(ctx context.Context, db db, req domain.Request, guard *requestGuard) (domain.Request, error) {
	uid, err := parseID(req.ID)
	if err != nil {
		return domain.Request{}, err
	}

	q := `
		UPDATE requests
		SET requester_name        = @requester_name,
		    department            = @department,
		    requested_vehicle     = @requested_vehicle,
		    is_driver_requested   = @is_driver_requested,
		    delegated_driver_name = @delegated_driver_name,
		    purpose               = @purpose,
		    destination           = @destination,
		    requested_date_time   = @requested_date_time,
		    estimated_arrival     = @estimated_arrival,
		    remarks               = @remarks,
		    completed_date        = @completed_date,
		    status                = @status,
		    trip_id               = @trip_id,
		    issue_faced           = @issue_faced,
		    action_taken          = @action_taken,
		    updated_at            = now()
		WHERE id = @id`

	args, err := requestArgs(req)
	if err != nil {
		return domain.Request{}, err
	}
	args["id"] = uid
	if guard != nil {
		q += ` AND status = @expect_status`
		args["expect_status"] = string(guard.status)
		if guard.checkTrip {
			expectTrip, err := optionalID(guard.tripID)
			if err != nil {
				return domain.Request{}, err
			}
			q += ` AND trip_id IS NOT DISTINCT FROM @expect_trip_id`
			args["expect_trip_id"] = expectTrip
		}
	}

	got, err := scanRequest(db.QueryRow(ctx, q+requestReturning, args))
	if errors.Is(err, domain.ErrNotFound) && guard != nil {
		var status string
		lookup := db.QueryRow(ctx, `SELECT status FROM requests WHERE id = @id`, pgx.NamedArgs{"id": uid})
		if lerr := lookup.Scan(&status); lerr == nil {
			return domain.Request{}, fmt.Errorf("%w: request %s changed since it was read (now %s)", guard.mismatch, req.ID, status)
		}
	}
	if err != nil {
		return domain.Request{}, err
	}
	return got, nil
}

func requestArgs(req domain.Request) (pgx.NamedArgs, error) {
	tripID, err := optionalID(req.TripID)
	if err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"requester_name":        req.RequesterName,
		"department":            req.Department,
		"requested_vehicle":     req.RequestedVehicle,
		"is_driver_requested":   req.IsDriverRequested,
		"delegated_driver_name": req.DelegatedDriverName,
		"purpose":               req.Purpose,
		"destination":           req.Destination,
		"requested_date_time":   req.RequestedDateTime,
		"estimated_arrival":     req.EstimatedArrival,
		"remarks":               req.Remarks,
		"completed_date":        dateArg(req.CompletedDate),
		"status":                string(req.Status),
		"trip_id":               tripID,
		"issue_faced":           req.IssueFaced,
		"action_taken":          req.ActionTaken,
	}, nil
}

func scanRequest(s scanner) (domain.Request, error) {
	var (
		r         domain.Request
		id        pgtype.UUID
		tripID    pgtype.UUID
		completed pgtype.Date
		status    string
	)

	err := s.Scan(
		&id, &r.RequesterName, &r.Department, &r.RequestedVehicle, &r.IsDriverRequested,
		&r.DelegatedDriverName, &r.Purpose, &r.Destination, &r.RequestedDateTime,
		&r.EstimatedArrival, &r.Remarks, &completed, &status, &tripID,
		&r.IssueFaced, &r.ActionTaken, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, err
	}

	r.ID = uuid.UUID(id.Bytes).String()
	r.Status = domain.RequestStatus(status)
	if tripID.Valid {
		tid := uuid.UUID(tripID.Bytes).String()
		r.TripID = &tid
	}
	if completed.Valid {
		d := completed.Time
		r.CompletedDate = &d
	}
	return r, nil
}

// dateArg maps an optional date to a DATE parameter (nil becomes NULL).
func dateArg(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
