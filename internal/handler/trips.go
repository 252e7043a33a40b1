package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// TripResponse renders a domain.Trip with completed_date as a calendar date.
type TripResponse struct {
	domain.Trip
	CompletedDate *openapi_types.Date `json:"completed_date,omitempty"`
}

// SetTripStatusBody is the body of PUT /trips/{id}/status.
type SetTripStatusBody struct {
	Status domain.TripStatus `json:"status"`
}

// NextCodeResponse is the body of GET /trips/next-code.
type NextCodeResponse struct {
	TripCode string `json:"trip_code"`
}

// ListTrips handles GET /trips, newest trip code first.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	params, err := paginationParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.trips.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]TripResponse, len(page.Items))
	for i, t := range page.Items {
		data[i] = toTripResponse(t)
	}
	writeJSON(w, http.StatusOK, ListResponse[TripResponse]{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: page.Total},
	})
}

// GetTrip handles GET /trips/{code}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.GetByCode(r.Context(), chi.URLParam(r, "trip"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(trip))
}

// GetNextTripCode handles GET /trips/next-code. The code is a suggestion;
// it is only reserved when a trip is committed with it.
func (s *Server) GetNextTripCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.trips.NextCode(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NextCodeResponse{TripCode: code})
}

// SetTripStatus handles PUT /trips/{id}/status. Admin only.
func (s *Server) SetTripStatus(w http.ResponseWriter, r *http.Request) {
	var body SetTripStatusBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	trip, err := s.trips.SetStatus(r.Context(), principal(r), chi.URLParam(r, "trip"), body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(trip))
}

// DeleteTrip handles DELETE /trips/{id}. Admin only.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.trips.Delete(r.Context(), principal(r), chi.URLParam(r, "trip")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAvailability handles GET /vehicles/availability: the vehicles committed
// to an unfinished trip that has not yet reached its ETA.
func (s *Server) GetAvailability(w http.ResponseWriter, r *http.Request) {
	busy, err := s.trips.Availability(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if busy == nil {
		busy = []domain.VehicleBusy{}
	}
	writeJSON(w, http.StatusOK, busy)
}

func toTripResponse(t domain.Trip) TripResponse {
	out := TripResponse{Trip: t}
	if t.CompletedDate != nil {
		out.CompletedDate = &openapi_types.Date{Time: *t.CompletedDate}
	}
	return out
}
