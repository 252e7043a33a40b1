package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// RequestService implements business logic for Request operations.
type RequestService struct {
	repo     repo.RequestRepo
	view     View[domain.Request]
	catalog  CatalogSource
	attempts AttemptPublisher
	clock    Clock
	loc      *time.Location
	logger   *slog.Logger
}

// NewRequestService constructs a RequestService. view may be nil, in which
// case every read goes to the store.
func NewRequestService(r repo.RequestRepo, view View[domain.Request], catalog CatalogSource, attempts AttemptPublisher, clock Clock, loc *time.Location, logger *slog.Logger) *RequestService {
	return &RequestService{repo: r, view: view, catalog: catalog, attempts: attempts, clock: clock, loc: loc, logger: logger}
}

// Submit validates sub and stores it as a new Pending request. Nothing is
// written when validation fails.
func (s *RequestService) Submit(ctx context.Context, sub domain.Submission) (domain.Request, error) {
	req, err := domain.NewRequest(sub, s.clock.Now())
	if err != nil {
		return domain.Request{}, storeErr("service.RequestService.Submit", err)
	}

	cat, err := s.catalog.Get(ctx)
	if err != nil {
		// An unreadable catalog does not block submissions.
		s.logger.WarnContext(ctx, "catalog unavailable, skipping membership check", "error", err)
	} else {
		if !cat.HasDepartment(req.Department) {
			return domain.Request{}, storeErr("service.RequestService.Submit", domain.Validationf("unknown department %q", req.Department))
		}
		if req.RequestedVehicle != nil && !cat.HasVehicle(*req.RequestedVehicle) {
			return domain.Request{}, storeErr("service.RequestService.Submit", domain.Validationf("unknown vehicle %q", *req.RequestedVehicle))
		}
	}

	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return domain.Request{}, storeErr("service.RequestService.Submit", err)
	}
	s.logger.InfoContext(ctx, "request submitted", "request_id", created.ID, "department", created.Department)
	return created, nil
}

// Get returns a single request by id, read from the store.
func (s *RequestService) Get(ctx context.Context, id string) (domain.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Request{}, storeErr("service.RequestService.Get", err)
	}
	return req, nil
}

// List returns one page of requests, Pending first then newest first,
// optionally narrowed to a status.
func (s *RequestService) List(ctx context.Context, status *domain.RequestStatus, p domain.PaginationParams) (Page[domain.Request], error) {
	if status != nil && !status.Valid() {
		return Page[domain.Request]{}, storeErr("service.RequestService.List", domain.Validationf("unknown status %q", *status))
	}

	all, ok := liveView(s.view)
	if ok {
		if status != nil {
			all = filter(all, func(r domain.Request) bool { return r.Status == *status })
		}
	} else {
		var err error
		all, err = s.repo.List(ctx, repo.RequestFilter{Status: status})
		if err != nil {
			return Page[domain.Request]{}, storeErr("service.RequestService.List", err)
		}
	}
	return Page[domain.Request]{Items: domain.Window(all, p), Total: len(all)}, nil
}

// Today returns the requests created on the current local calendar day.
func (s *RequestService) Today(ctx context.Context) ([]domain.Request, error) {
	now := s.clock.Now().In(s.loc)

	if all, ok := liveView(s.view); ok {
		return filter(all, func(r domain.Request) bool { return domain.CreatedOn(r, now) }), nil
	}

	from, before := dayBounds(now)
	reqs, err := s.repo.List(ctx, repo.RequestFilter{CreatedFrom: &from, CreatedBefore: &before})
	if err != nil {
		return nil, storeErr("service.RequestService.Today", err)
	}
	return reqs, nil
}

// Update applies an admin edit. The write fails with domain.ErrConflict when
// the request was approved or unlinked from its trip after it was read.
func (s *RequestService) Update(ctx context.Context, p domain.Principal, id string, patch domain.RequestPatch) (domain.Request, error) {
	const op = "service.RequestService.Update"
	if err := requireAdmin(op, p); err != nil {
		return domain.Request{}, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Request{}, storeErr(op, err)
	}
	next, err := domain.ApplyPatch(current, patch)
	if err == nil {
		next, err = s.repo.CompareAndUpdate(ctx, current, next)
	}
	if err != nil {
		err = storeErr(op, err)
		s.attempts.AttemptFailed(ctx, domain.FailedAttempt{
			Action:        domain.AttemptUpdate,
			RequestID:     current.ID,
			RequesterName: current.RequesterName,
			Reason:        outcome(err),
			By:            p.Name(),
			At:            s.clock.Now(),
		})
		return domain.Request{}, err
	}
	s.logger.InfoContext(ctx, "request updated", "request_id", id, "by", p.Name())
	return next, nil
}

// Delete removes a request. Admin only.
func (s *RequestService) Delete(ctx context.Context, p domain.Principal, id string) error {
	const op = "service.RequestService.Delete"
	if err := requireAdmin(op, p); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(op, err)
	}
	s.logger.InfoContext(ctx, "request deleted", "request_id", id, "by", p.Name())
	return nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
