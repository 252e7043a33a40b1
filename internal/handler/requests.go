package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/vehicle-requests/backend/internal/auth"
	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// Pagination is the paging envelope of list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// ListResponse is the body of every paginated list endpoint.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// RequestResponse renders a domain.Request. completed_date is a calendar
// date on the wire.
type RequestResponse struct {
	domain.Request
	CompletedDate *openapi_types.Date `json:"completed_date,omitempty"`
}

// SubmitRequestBody is the body of POST /requests.
type SubmitRequestBody struct {
	RequesterName       string     `json:"requester_name"`
	Department          string     `json:"department"`
	RequestedVehicle    *string    `json:"requested_vehicle"`
	IsDriverRequested   *bool      `json:"is_driver_requested"`
	DelegatedDriverName *string    `json:"delegated_driver_name"`
	Purpose             string     `json:"purpose"`
	Destination         string     `json:"destination"`
	RequestedDateTime   *time.Time `json:"requested_date_time"`
	EstimatedArrival    *time.Time `json:"estimated_arrival"`
	Remarks             string     `json:"remarks"`
}

// UpdateRequestBody is the body of PATCH /requests/{id}. Omitted fields are
// left unchanged.
type UpdateRequestBody struct {
	RequesterName       *string               `json:"requester_name"`
	Department          *string               `json:"department"`
	RequestedVehicle    *string               `json:"requested_vehicle"`
	IsDriverRequested   *bool                 `json:"is_driver_requested"`
	DelegatedDriverName *string               `json:"delegated_driver_name"`
	Purpose             *string               `json:"purpose"`
	Destination         *string               `json:"destination"`
	RequestedDateTime   *time.Time            `json:"requested_date_time"`
	EstimatedArrival    *time.Time            `json:"estimated_arrival"`
	Remarks             *string               `json:"remarks"`
	CompletedDate       *openapi_types.Date   `json:"completed_date"`
	Status              *domain.RequestStatus `json:"status"`
	IssueFaced          *string               `json:"issue_faced"`
	ActionTaken         *string               `json:"action_taken"`
}

// SubmitRequest handles POST /requests.
func (s *Server) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.requests.Submit(r.Context(), domain.Submission{
		RequesterName:       body.RequesterName,
		Department:          body.Department,
		RequestedVehicle:    body.RequestedVehicle,
		IsDriverRequested:   body.IsDriverRequested,
		DelegatedDriverName: body.DelegatedDriverName,
		Purpose:             body.Purpose,
		Destination:         body.Destination,
		RequestedDateTime:   body.RequestedDateTime,
		EstimatedArrival:    body.EstimatedArrival,
		Remarks:             body.Remarks,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// ListRequests handles GET /requests.
// Supports ?status=, ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func (s *Server) ListRequests(w http.ResponseWriter, r *http.Request) {
	params, err := paginationParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var status *domain.RequestStatus
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", errBadBody, err.Error()))
		return
	}

	page, err := s.requests.List(r.Context(), status, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]RequestResponse, len(page.Items))
	for i, req := range page.Items {
		data[i] = toRequestResponse(req)
	}
	writeJSON(w, http.StatusOK, ListResponse[RequestResponse]{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: page.Total},
	})
}

// ListTodayRequests handles GET /requests/today: the requests submitted on
// the current local calendar day.
func (s *Server) ListTodayRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.requests.Today(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]RequestResponse, len(reqs))
	for i, req := range reqs {
		data[i] = toRequestResponse(req)
	}
	writeJSON(w, http.StatusOK, data)
}

// GetRequest handles GET /requests/{id}.
func (s *Server) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(req))
}

// UpdateRequest handles PATCH /requests/{id}. Admin only.
func (s *Server) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var body UpdateRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	patch := domain.RequestPatch{
		RequesterName:       body.RequesterName,
		Department:          body.Department,
		RequestedVehicle:    body.RequestedVehicle,
		IsDriverRequested:   body.IsDriverRequested,
		DelegatedDriverName: body.DelegatedDriverName,
		Purpose:             body.Purpose,
		Destination:         body.Destination,
		RequestedDateTime:   body.RequestedDateTime,
		EstimatedArrival:    body.EstimatedArrival,
		Remarks:             body.Remarks,
		Status:              body.Status,
		IssueFaced:          body.IssueFaced,
		ActionTaken:         body.ActionTaken,
	}
	if body.CompletedDate != nil {
		d := body.CompletedDate.Time
		patch.CompletedDate = &d
	}

	updated, err := s.requests.Update(r.Context(), principal(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(updated))
}

// DeleteRequest handles DELETE /requests/{id}. Admin only.
func (s *Server) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.requests.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toRequestResponse(req domain.Request) RequestResponse {
	out := RequestResponse{Request: req}
	if req.CompletedDate != nil {
		out.CompletedDate = &openapi_types.Date{Time: *req.CompletedDate}
	}
	return out
}

// paginationParams binds ?page= and ?limit=.
func paginationParams(r *http.Request) (domain.PaginationParams, error) {
	var page, limit *int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &page); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("%w: %s", errBadBody, err.Error())
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		return domain.PaginationParams{}, fmt.Errorf("%w: %s", errBadBody, err.Error())
	}
	return domain.NewPaginationParams(page, limit), nil
}

// principal returns the caller attached by the auth middleware. A missing
// principal is an anonymous non-admin, which the services reject for
// admin-only operations.
func principal(r *http.Request) domain.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
