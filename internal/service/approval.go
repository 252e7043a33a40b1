package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// AttemptPublisher is told about edits and approvals that failed after the
// request was found.
type AttemptPublisher interface {
	AttemptFailed(ctx context.Context, a domain.FailedAttempt)
}

// ApprovalPublisher is told about every committed approval and every failed
// one.
type ApprovalPublisher interface {
	ApprovalCommitted(ctx context.Context, ev domain.ApprovalEvent)
	AttemptPublisher
}

// ApprovalRecorder counts approval attempts.
type ApprovalRecorder interface {
	ObserveApproval(mode, outcome string)
}

// CodeGenerator proposes the next free trip code.
type CodeGenerator interface {
	NextCode(ctx context.Context) (string, error)
}

// ApprovalResult is the state written by a successful approval.
type ApprovalResult struct {
	Request domain.Request `json:"request"`
	Trip    domain.Trip    `json:"trip"`
}

// ApprovalService turns Pending requests into trips.
type ApprovalService struct {
	requests  repo.RequestRepo
	trips     repo.TripRepo
	batch     repo.ApprovalBatch
	codes     CodeGenerator
	publisher ApprovalPublisher
	recorder  ApprovalRecorder
	clock     Clock
	logger    *slog.Logger
}

// NewApprovalService wires an ApprovalService.
func NewApprovalService(
	requests repo.RequestRepo,
	trips repo.TripRepo,
	batch repo.ApprovalBatch,
	codes CodeGenerator,
	publisher ApprovalPublisher,
	recorder ApprovalRecorder,
	clock Clock,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		requests:  requests,
		trips:     trips,
		batch:     batch,
		codes:     codes,
		publisher: publisher,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
	}
}

// Approve approves the request identified by requestID according to d.
//
// ApproveNewTrip creates a trip under d.TripCode, or under the next
// generated code when d.TripCode is blank. ApproveExistingTrip merges the
// request into the trip with code d.TripCode. In both modes the request and
// the trip are written together or not at all.
func (s *ApprovalService) Approve(ctx context.Context, p domain.Principal, requestID string, d domain.Decision) (ApprovalResult, error) {
	res, req, err := s.approve(ctx, p, requestID, d)
	s.recorder.ObserveApproval(modeLabel(d.Mode), outcome(err))
	if err != nil {
		s.logger.WarnContext(ctx, "approval failed",
			"request_id", requestID, "mode", d.Mode, "trip_code", d.TripCode, "by", p.Name(), "error", err)
		if req.ID != "" {
			s.publisher.AttemptFailed(ctx, domain.FailedAttempt{
				Action:        domain.AttemptApprove,
				RequestID:     req.ID,
				RequesterName: req.RequesterName,
				Reason:        outcome(err),
				By:            p.Name(),
				At:            s.clock.Now(),
			})
		}
		return ApprovalResult{}, err
	}

	s.logger.InfoContext(ctx, "request approved",
		"request_id", res.Request.ID, "mode", d.Mode, "trip_code", res.Trip.TripCode, "by", p.Name())
	s.publisher.ApprovalCommitted(ctx, domain.ApprovalEvent{
		ID:            uuid.New(),
		RequestID:     res.Request.ID,
		RequesterName: res.Request.RequesterName,
		TripID:        res.Trip.ID,
		TripCode:      res.Trip.TripCode,
		Mode:          d.Mode,
		ApprovedBy:    p.Name(),
		At:            s.clock.Now(),
	})
	return res, nil
}

// approve also returns the request as read, zero when it was never loaded.
func (s *ApprovalService) approve(ctx context.Context, p domain.Principal, requestID string, d domain.Decision) (ApprovalResult, domain.Request, error) {
	const op = "service.ApprovalService.Approve"
	if err := requireAdmin(op, p); err != nil {
		return ApprovalResult{}, domain.Request{}, err
	}
	if d.Mode != domain.ApproveNewTrip && d.Mode != domain.ApproveExistingTrip {
		return ApprovalResult{}, domain.Request{}, storeErr(op, domain.Validationf("unknown approval mode %q", d.Mode))
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return ApprovalResult{}, domain.Request{}, storeErr(op, err)
	}
	if req.Status != domain.RequestPending {
		return ApprovalResult{}, req, storeErr(op, fmt.Errorf("%w: request is %s, only Pending requests can be approved", domain.ErrInvalidState, req.Status))
	}

	d.TripCode = strings.TrimSpace(d.TripCode)
	var (
		gotReq  domain.Request
		gotTrip domain.Trip
	)
	switch d.Mode {
	case domain.ApproveNewTrip:
		gotReq, gotTrip, err = s.approveNew(ctx, req, d)
	case domain.ApproveExistingTrip:
		gotReq, gotTrip, err = s.approveExisting(ctx, req, d)
	}
	if err != nil {
		return ApprovalResult{}, req, storeErr(op, err)
	}
	return ApprovalResult{Request: gotReq, Trip: gotTrip}, req, nil
}

func (s *ApprovalService) approveNew(ctx context.Context, req domain.Request, d domain.Decision) (domain.Request, domain.Trip, error) {
	if d.TripCode == "" {
		code, err := s.codes.NextCode(ctx)
		if err != nil {
			return domain.Request{}, domain.Trip{}, err
		}
		d.TripCode = code
	} else {
		if !domain.ValidTripCode(d.TripCode) {
			return domain.Request{}, domain.Trip{}, domain.Validationf("trip code %q must have the form YYMMDD-XXXX", d.TripCode)
		}
		_, err := s.trips.GetByCode(ctx, d.TripCode)
		switch {
		case err == nil:
			return domain.Request{}, domain.Trip{}, fmt.Errorf("%w: trip code %s is already in use", domain.ErrConflict, d.TripCode)
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Request{}, domain.Trip{}, err
		}
	}

	approved, trip, err := domain.ApproveAsNewTrip(req, d)
	if err != nil {
		return domain.Request{}, domain.Trip{}, err
	}
	return s.batch.CommitNewTrip(ctx, approved, trip)
}

func (s *ApprovalService) approveExisting(ctx context.Context, req domain.Request, d domain.Decision) (domain.Request, domain.Trip, error) {
	if d.TripCode == "" {
		return domain.Request{}, domain.Trip{}, domain.Validationf("trip_code is required to approve into an existing trip")
	}
	trip, err := s.trips.GetByCode(ctx, d.TripCode)
	if err != nil {
		return domain.Request{}, domain.Trip{}, err
	}

	approved, merged, err := domain.MergeIntoTrip(req, trip)
	if err != nil {
		return domain.Request{}, domain.Trip{}, err
	}
	return s.batch.CommitMerge(ctx, approved, merged)
}

func modeLabel(m domain.ApprovalMode) string {
	if m == domain.ApproveNewTrip || m == domain.ApproveExistingTrip {
		return string(m)
	}
	return "unknown"
}

// outcome classifies err for the approvals_total metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTransientStore):
		return "unavailable"
	}
	return "error"
}
