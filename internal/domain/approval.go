package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalMode selects how a pending request is approved.
type ApprovalMode string

const (
	ApproveNewTrip      ApprovalMode = "new"
	ApproveExistingTrip ApprovalMode = "existing"
)

// Decision is an admin's approval choice. For ApproveExistingTrip only
// TripCode is used; the override fields apply to a new trip.
type Decision struct {
	Mode       ApprovalMode
	TripCode   string
	Vehicle    *string
	DriverName *string
	DateTime   *time.Time
}

// ApprovalEvent records that a request was approved into a trip.
type ApprovalEvent struct {
	ID            uuid.UUID    `json:"id"`
	RequestID     string       `json:"request_id"`
	RequesterName string       `json:"requester_name"`
	TripID        string       `json:"trip_id"`
	TripCode      string       `json:"trip_code"`
	Mode          ApprovalMode `json:"mode"`
	ApprovedBy    string       `json:"approved_by"`
	At            time.Time    `json:"at"`
}

// ApproveAsNewTrip approves req into a brand new trip built from d.
// Vehicle and date-time fall back to the request's own values; the driver
// falls back to the request's delegated driver when it asked for one.
// The returned trip has no ID; the store assigns it.
func ApproveAsNewTrip(req Request, d Decision) (Request, Trip, error) {
	if req.Status != RequestPending {
		return Request{}, Trip{}, notPending(req)
	}

	dateTime := req.RequestedDateTime
	if d.DateTime != nil && !d.DateTime.IsZero() {
		dateTime = *d.DateTime
	}
	vehicle := req.RequestedVehicle
	if v := trimOptional(d.Vehicle); v != nil {
		vehicle = v
	}
	driver := originalDriver(req)
	if v := trimOptional(d.DriverName); v != nil {
		driver = v
	}

	req.Status = RequestApproved
	req.RequestedDateTime = dateTime
	req.RequestedVehicle = vehicle
	req.IsDriverRequested = driver != nil
	req.DelegatedDriverName = driver
	req = NormalizeRequest(req)

	dt := dateTime
	trip := Trip{
		TripCode:         d.TripCode,
		DateTime:         &dt,
		VehicleAssigned:  vehicle,
		DriverName:       driver,
		EstimatedArrival: req.EstimatedArrival,
		Personnel:        []string{req.RequesterName},
		Purpose:          []string{req.Purpose},
		Destination:      req.Destination,
		RequestIDs:       []string{req.ID},
		Status:           TripNotFulfilled,
	}
	return req, trip, nil
}

// MergeIntoTrip approves req into an existing trip.
//
// The trip keeps its date-time, vehicle and driver; unset ones are
// backfilled from the request as originally submitted. The request is then
// rewritten to match the trip, never the other way round. Personnel and
// purpose are appended when not already present (exact match), and the
// destination is appended with "; " unless the trip already mentions it
// (case-insensitive).
func MergeIntoTrip(req Request, trip Trip) (Request, Trip, error) {
	if req.Status != RequestPending {
		return Request{}, Trip{}, notPending(req)
	}
	if slices.Contains(trip.RequestIDs, req.ID) {
		return Request{}, Trip{}, fmt.Errorf("%w: request %s is already in trip %s", ErrInvalidState, req.ID, trip.TripCode)
	}

	trip.RequestIDs = append(slices.Clone(trip.RequestIDs), req.ID)
	trip.Personnel = appendUnique(trip.Personnel, req.RequesterName)
	trip.Purpose = appendUnique(trip.Purpose, req.Purpose)
	trip.Destination = MergeDestination(trip.Destination, req.Destination)

	if trip.DateTime == nil {
		dt := req.RequestedDateTime
		trip.DateTime = &dt
	}
	if trip.VehicleAssigned == nil {
		trip.VehicleAssigned = req.RequestedVehicle
	}
	if trip.DriverName == nil {
		trip.DriverName = originalDriver(req)
	}
	if trip.EstimatedArrival == nil {
		trip.EstimatedArrival = req.EstimatedArrival
	}

	req.Status = RequestApproved
	req.RequestedDateTime = *trip.DateTime
	req.RequestedVehicle = trip.VehicleAssigned
	req.IsDriverRequested = trip.DriverName != nil
	req.DelegatedDriverName = trip.DriverName
	if trip.ID != "" {
		id := trip.ID
		req.TripID = &id
	}
	return NormalizeRequest(req), trip, nil
}

// MergeDestination folds addition into current. A blank addition leaves
// current unchanged, an empty current adopts addition, and an addition that
// current already contains (case-insensitive) is dropped.
func MergeDestination(current, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return current
	}
	if strings.TrimSpace(current) == "" {
		return addition
	}
	if strings.Contains(strings.ToLower(current), strings.ToLower(addition)) {
		return current
	}
	return current + "; " + addition
}

func notPending(req Request) error {
	return fmt.Errorf("%w: request %s is %s, only Pending requests can be approved", ErrInvalidState, req.ID, req.Status)
}

// originalDriver is the driver the request itself asked for, if any.
func originalDriver(req Request) *string {
	if !req.IsDriverRequested {
		return nil
	}
	return trimOptional(req.DelegatedDriverName)
}

func appendUnique(list []string, v string) []string {
	out := slices.Clone(list)
	if v == "" || slices.Contains(out, v) {
		return out
	}
	return append(out, v)
}
