package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a Request.
type RequestStatus string

const (
	RequestPending     RequestStatus = "Pending"
	RequestApproved    RequestStatus = "Approved"
	RequestRescheduled RequestStatus = "Rescheduled"
	RequestCancelled   RequestStatus = "Cancelled"
)

// Valid reports whether s is one of the known request statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRescheduled, RequestCancelled:
		return true
	}
	return false
}

// Rank orders statuses for display: Pending first, unknown values last.
func (s RequestStatus) Rank() int {
	switch s {
	case RequestPending:
		return 1
	case RequestApproved:
		return 2
	case RequestRescheduled:
		return 3
	case RequestCancelled:
		return 4
	}
	return 99
}

// Request is a single vehicle-service ask submitted by personnel.
//
// DelegatedDriverName is only set when IsDriverRequested is true, and
// CompletedDate only when Remarks mention "completed". NormalizeRequest
// enforces both; every write path goes through it.
type Request struct {
	ID                  string        `json:"id"`
	CreatedAt           time.Time     `json:"timestamp"`
	RequesterName       string        `json:"requester_name"`
	Department          string        `json:"department"`
	RequestedVehicle    *string       `json:"requested_vehicle,omitempty"` // nil until decided at approval
	IsDriverRequested   bool          `json:"is_driver_requested"`
	DelegatedDriverName *string       `json:"delegated_driver_name,omitempty"`
	Purpose             string        `json:"purpose"`
	Destination         string        `json:"destination"`
	RequestedDateTime   time.Time     `json:"requested_date_time"`
	EstimatedArrival    *time.Time    `json:"estimated_arrival,omitempty"`
	Remarks             string        `json:"remarks,omitempty"`
	CompletedDate       *time.Time    `json:"completed_date,omitempty"`
	Status              RequestStatus `json:"status"`
	TripID              *string       `json:"trip_id,omitempty"`

	// Admin-only bookkeeping.
	IssueFaced  string `json:"issue_faced,omitempty"`
	ActionTaken string `json:"action_taken,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Submission is the requester-supplied input for a new Request.
// Pointer fields distinguish "not answered" from a zero value.
type Submission struct {
	RequesterName       string
	Department          string
	RequestedVehicle    *string
	IsDriverRequested   *bool
	DelegatedDriverName *string
	Purpose             string
	Destination         string
	RequestedDateTime   *time.Time
	EstimatedArrival    *time.Time
	Remarks             string
}

// NewRequest validates a submission and builds a Pending request from it.
// Every missing required field is reported in one ErrValidation error.
func NewRequest(sub Submission, now time.Time) (Request, error) {
	var missing []string
	if strings.TrimSpace(sub.RequesterName) == "" {
		missing = append(missing, "requester_name")
	}
	if strings.TrimSpace(sub.Department) == "" {
		missing = append(missing, "department")
	}
	if sub.IsDriverRequested == nil {
		missing = append(missing, "is_driver_requested")
	}
	if strings.TrimSpace(sub.Purpose) == "" {
		missing = append(missing, "purpose")
	}
	if strings.TrimSpace(sub.Destination) == "" {
		missing = append(missing, "destination")
	}
	if sub.RequestedDateTime == nil || sub.RequestedDateTime.IsZero() {
		missing = append(missing, "requested_date_time")
	}
	if len(missing) > 0 {
		return Request{}, Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if sub.EstimatedArrival != nil && sub.EstimatedArrival.Before(*sub.RequestedDateTime) {
		return Request{}, Validationf("estimated_arrival must not be before requested_date_time")
	}

	req := Request{
		CreatedAt:           now,
		RequesterName:       strings.TrimSpace(sub.RequesterName),
		Department:          strings.TrimSpace(sub.Department),
		RequestedVehicle:    sub.RequestedVehicle,
		IsDriverRequested:   *sub.IsDriverRequested,
		DelegatedDriverName: sub.DelegatedDriverName,
		Purpose:             strings.TrimSpace(sub.Purpose),
		Destination:         strings.TrimSpace(sub.Destination),
		RequestedDateTime:   *sub.RequestedDateTime,
		EstimatedArrival:    sub.EstimatedArrival,
		Remarks:             sub.Remarks,
		Status:              RequestPending,
	}
	return NormalizeRequest(req), nil
}

// NormalizeRequest applies the optional-field rules:
//   - blank optional strings become nil
//   - DelegatedDriverName is cleared unless IsDriverRequested
//   - CompletedDate is cleared unless Remarks contain "completed" (any case)
func NormalizeRequest(r Request) Request {
	r.RequestedVehicle = trimOptional(r.RequestedVehicle)
	r.DelegatedDriverName = trimOptional(r.DelegatedDriverName)
	if !r.IsDriverRequested {
		r.DelegatedDriverName = nil
	}
	if !RemarksDenoteCompletion(r.Remarks) {
		r.CompletedDate = nil
	}
	return r
}

// RemarksDenoteCompletion reports whether remarks mark the request as completed.
func RemarksDenoteCompletion(remarks string) bool {
	return strings.Contains(strings.ToLower(remarks), "completed")
}

// RequestPatch carries an admin edit. Nil fields are left unchanged; an
// empty string clears an optional string field.
type RequestPatch struct {
	RequesterName       *string
	Department          *string
	RequestedVehicle    *string
	IsDriverRequested   *bool
	DelegatedDriverName *string
	Purpose             *string
	Destination         *string
	RequestedDateTime   *time.Time
	EstimatedArrival    *time.Time
	Remarks             *string
	CompletedDate       *time.Time
	Status              *RequestStatus
	IssueFaced          *string
	ActionTaken         *string
}

// ApplyPatch returns r with p applied and normalized.
// Approval is not reachable through a patch; it must go through the
// approval engine so the request gets a trip. A request that sits in a trip
// keeps its Approved status until the trip is deleted.
func ApplyPatch(r Request, p RequestPatch) (Request, error) {
	if p.Status != nil {
		if !p.Status.Valid() {
			return Request{}, Validationf("unknown status %q", *p.Status)
		}
		if *p.Status == RequestApproved && r.Status != RequestApproved {
			return Request{}, Validationf("requests are approved through the approval endpoint")
		}
		if r.Status == RequestApproved && *p.Status != RequestApproved && r.TripID != nil {
			return Request{}, fmt.Errorf("%w: request %s belongs to trip %s and cannot leave Approved", ErrInvalidState, r.ID, *r.TripID)
		}
		r.Status = *p.Status
	}

	required := []struct {
		name string
		in   *string
		out  *string
	}{
		{"requester_name", p.RequesterName, &r.RequesterName},
		{"department", p.Department, &r.Department},
		{"purpose", p.Purpose, &r.Purpose},
		{"destination", p.Destination, &r.Destination},
	}
	for _, f := range required {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if v == "" {
			return Request{}, Validationf("%s must not be blank", f.name)
		}
		*f.out = v
	}

	if p.RequestedVehicle != nil {
		r.RequestedVehicle = p.RequestedVehicle
	}
	if p.IsDriverRequested != nil {
		r.IsDriverRequested = *p.IsDriverRequested
	}
	if p.DelegatedDriverName != nil {
		r.DelegatedDriverName = p.DelegatedDriverName
	}
	if p.RequestedDateTime != nil {
		if p.RequestedDateTime.IsZero() {
			return Request{}, Validationf("requested_date_time must not be blank")
		}
		r.RequestedDateTime = *p.RequestedDateTime
	}
	if p.EstimatedArrival != nil {
		r.EstimatedArrival = p.EstimatedArrival
	}
	if p.Remarks != nil {
		r.Remarks = *p.Remarks
	}
	if p.CompletedDate != nil {
		r.CompletedDate = p.CompletedDate
	}
	if p.IssueFaced != nil {
		r.IssueFaced = *p.IssueFaced
	}
	if p.ActionTaken != nil {
		r.ActionTaken = *p.ActionTaken
	}
	return NormalizeRequest(r), nil
}

// CompareRequests orders requests by status rank ascending, then by creation
// time descending. Ties fall back to id so the order is total.
func CompareRequests(a, b Request) int {
	if c := cmp.Compare(a.Status.Rank(), b.Status.Rank()); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortRequests sorts reqs in place using CompareRequests.
func SortRequests(reqs []Request) {
	slices.SortFunc(reqs, CompareRequests)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
