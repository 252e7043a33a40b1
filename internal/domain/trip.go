// Package domain contains the core data types and pure business rules of the
// service vehicle request system. It has no datastore or transport
// dependencies and is imported by every other internal package.
package domain

import (
	"cmp"
	"slices"
	"time"
)

// TripStatus is the fulfilment state of a Trip.
type TripStatus string

const (
	TripNotFulfilled TripStatus = "Not Fulfilled"
	TripFulfilled    TripStatus = "Fulfilled"
)

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	return s == TripNotFulfilled || s == TripFulfilled
}

// Trip is an approved transport event servicing one or more requests.
// Personnel and Purpose keep append order and never lose an entry once a
// request has been merged in.
type Trip struct {
	ID               string     `json:"id"`
	TripCode         string     `json:"trip_code"`
	DateTime         *time.Time `json:"date_time,omitempty"`
	VehicleAssigned  *string    `json:"vehicle_assigned,omitempty"`
	DriverName       *string    `json:"driver_name,omitempty"`
	EstimatedArrival *time.Time `json:"estimated_arrival,omitempty"`
	Personnel        []string   `json:"personnel"`
	Purpose          []string   `json:"purpose"`
	Destination      string     `json:"destination"`
	RequestIDs       []string   `json:"request_ids"`
	Status           TripStatus `json:"status"`
	CompletedDate    *time.Time `json:"completed_date,omitempty"`

	// Revision is bumped by the store on every write. Conditional updates
	// compare against the revision that was read.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStatus moves t to status, stamping or clearing CompletedDate.
func SetStatus(t Trip, status TripStatus, now time.Time) (Trip, error) {
	if !status.Valid() {
		return Trip{}, Validationf("unknown trip status %q", status)
	}
	t.Status = status
	if status == TripFulfilled {
		if t.CompletedDate == nil {
			d := now
			t.CompletedDate = &d
		}
	} else {
		t.CompletedDate = nil
	}
	return t, nil
}

// CompareTrips orders trips by trip code descending, which is newest first
// because codes are date-prefixed.
func CompareTrips(a, b Trip) int {
	if c := cmp.Compare(b.TripCode, a.TripCode); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortTrips sorts trips in place using CompareTrips.
func SortTrips(trips []Trip) {
	slices.SortFunc(trips, CompareTrips)
}
