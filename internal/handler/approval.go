package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// ApproveRequestBody is the body of POST /requests/{id}/approve.
// mode is "new" or "existing". For "new" a blank trip_code asks the server
// to generate one; vehicle, driver_name and date_time override the
// request's own values. For "existing" only trip_code is read.
type ApproveRequestBody struct {
	Mode       domain.ApprovalMode `json:"mode"`
	TripCode   string              `json:"trip_code"`
	Vehicle    *string             `json:"vehicle"`
	DriverName *string             `json:"driver_name"`
	DateTime   *time.Time          `json:"date_time"`
}

// ApprovalResponse is the committed request and trip.
type ApprovalResponse struct {
	Request RequestResponse `json:"request"`
	Trip    TripResponse    `json:"trip"`
}

// ApproveRequest handles POST /requests/{id}/approve. Admin only.
func (s *Server) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body ApproveRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.approvals.Approve(r.Context(), principal(r), chi.URLParam(r, "id"), domain.Decision{
		Mode:       body.Mode,
		TripCode:   body.TripCode,
		Vehicle:    body.Vehicle,
		DriverName: body.DriverName,
		DateTime:   body.DateTime,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ApprovalResponse{
		Request: toRequestResponse(res.Request),
		Trip:    toTripResponse(res.Trip),
	})
}
