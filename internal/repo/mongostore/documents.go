package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

type requestDoc struct {
	ID                  bson.ObjectID `bson:"_id,omitempty"`
	RequesterName       string        `bson:"requester_name"`
	Department          string        `bson:"department"`
	RequestedVehicle    *string       `bson:"requested_vehicle"`
	IsDriverRequested   bool          `bson:"is_driver_requested"`
	DelegatedDriverName *string       `bson:"delegated_driver_name"`
	Purpose             string        `bson:"purpose"`
	Destination         string        `bson:"destination"`
	RequestedDateTime   time.Time     `bson:"requested_date_time"`
	EstimatedArrival    *time.Time    `bson:"estimated_arrival"`
	Remarks             string        `bson:"remarks"`
	CompletedDate       *time.Time    `bson:"completed_date"`
	Status              string        `bson:"status"`
	TripID              *string       `bson:"trip_id"`
	IssueFaced          string        `bson:"issue_faced"`
	ActionTaken         string        `bson:"action_taken"`
	CreatedAt           time.Time     `bson:"created_at"`
	UpdatedAt           time.Time     `bson:"updated_at"`
}

func toRequestDoc(r domain.Request) requestDoc {
	return requestDoc{
		RequesterName:       r.RequesterName,
		Department:          r.Department,
		RequestedVehicle:    r.RequestedVehicle,
		IsDriverRequested:   r.IsDriverRequested,
		DelegatedDriverName: r.DelegatedDriverName,
		Purpose:             r.Purpose,
		Destination:         r.Destination,
		RequestedDateTime:   r.RequestedDateTime,
		EstimatedArrival:    r.EstimatedArrival,
		Remarks:             r.Remarks,
		CompletedDate:       r.CompletedDate,
		Status:              string(r.Status),
		TripID:              r.TripID,
		IssueFaced:          r.IssueFaced,
		ActionTaken:         r.ActionTaken,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (d requestDoc) toDomain() domain.Request {
	return domain.Request{
		ID:                  d.ID.Hex(),
		CreatedAt:           d.CreatedAt,
		RequesterName:       d.RequesterName,
		Department:          d.Department,
		RequestedVehicle:    d.RequestedVehicle,
		IsDriverRequested:   d.IsDriverRequested,
		DelegatedDriverName: d.DelegatedDriverName,
		Purpose:             d.Purpose,
		Destination:         d.Destination,
		RequestedDateTime:   d.RequestedDateTime,
		EstimatedArrival:    d.EstimatedArrival,
		Remarks:             d.Remarks,
		CompletedDate:       d.CompletedDate,
		Status:              domain.RequestStatus(d.Status),
		TripID:              d.TripID,
		IssueFaced:          d.IssueFaced,
		ActionTaken:         d.ActionTaken,
		UpdatedAt:           d.UpdatedAt,
	}
}

// mutable lists the fields an update may overwrite.
func (d requestDoc) mutable(now time.Time) bson.M {
	return bson.M{
		"requester_name":        d.RequesterName,
		"department":            d.Department,
		"requested_vehicle":     d.RequestedVehicle,
		"is_driver_requested":   d.IsDriverRequested,
		"delegated_driver_name": d.DelegatedDriverName,
		"purpose":               d.Purpose,
		"destination":           d.Destination,
		"requested_date_time":   d.RequestedDateTime,
		"estimated_arrival":     d.EstimatedArrival,
		"remarks":               d.Remarks,
		"completed_date":        d.CompletedDate,
		"status":                d.Status,
		"trip_id":               d.TripID,
		"issue_faced":           d.IssueFaced,
		"action_taken":          d.ActionTaken,
		"updated_at":            now,
	}
}

type tripDoc struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	TripCode         string        `bson:"trip_code"`
	DateTime         *time.Time    `bson:"date_time"`
	VehicleAssigned  *string       `bson:"vehicle_assigned"`
	DriverName       *string       `bson:"driver_name"`
	EstimatedArrival *time.Time    `bson:"estimated_arrival"`
	Personnel        []string      `bson:"personnel"`
	Purpose          []string      `bson:"purpose"`
	Destination      string        `bson:"destination"`
	RequestIDs       []string      `bson:"request_ids"`
	Status           string        `bson:"status"`
	CompletedDate    *time.Time    `bson:"completed_date"`
	Revision         int64         `bson:"revision"`
	CreatedAt        time.Time     `bson:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at"`
}

func toTripDoc(t domain.Trip) tripDoc {
	status := t.Status
	if status == "" {
		status = domain.TripNotFulfilled
	}
	return tripDoc{
		TripCode:         t.TripCode,
		DateTime:         t.DateTime,
		VehicleAssigned:  t.VehicleAssigned,
		DriverName:       t.DriverName,
		EstimatedArrival: t.EstimatedArrival,
		Personnel:        nonNil(t.Personnel),
		Purpose:          nonNil(t.Purpose),
		Destination:      t.Destination,
		RequestIDs:       nonNil(t.RequestIDs),
		Status:           string(status),
		CompletedDate:    t.CompletedDate,
		Revision:         t.Revision,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func (d tripDoc) toDomain() domain.Trip {
	return domain.Trip{
		ID:               d.ID.Hex(),
		TripCode:         d.TripCode,
		DateTime:         d.DateTime,
		VehicleAssigned:  d.VehicleAssigned,
		DriverName:       d.DriverName,
		EstimatedArrival: d.EstimatedArrival,
		Personnel:        nonNil(d.Personnel),
		Purpose:          nonNil(d.Purpose),
		Destination:      d.Destination,
		RequestIDs:       nonNil(d.RequestIDs),
		Status:           domain.TripStatus(d.Status),
		CompletedDate:    d.CompletedDate,
		Revision:         d.Revision,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func (d tripDoc) mutable(now time.Time) bson.M {
	return bson.M{
		"trip_code":         d.TripCode,
		"date_time":         d.DateTime,
		"vehicle_assigned":  d.VehicleAssigned,
		"driver_name":       d.DriverName,
		"estimated_arrival": d.EstimatedArrival,
		"personnel":         d.Personnel,
		"purpose":           d.Purpose,
		"destination":       d.Destination,
		"request_ids":       d.RequestIDs,
		"status":            d.Status,
		"completed_date":    d.CompletedDate,
		"updated_at":        now,
	}
}

// objectID parses a domain id. Ids that are not ObjectIDs cannot exist.
func objectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, domain.ErrNotFound
	}
	return oid, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
