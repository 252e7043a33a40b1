package domain

import (
	"cmp"
	"slices"
	"time"
)

// VehicleBusy says a vehicle is committed to a trip until BusyUntil.
type VehicleBusy struct {
	Vehicle   string    `json:"vehicle"`
	TripCode  string    `json:"trip_code"`
	BusyUntil time.Time `json:"busy_until"`
}

// BusyVehicles lists vehicles assigned to unfulfilled trips on now's
// calendar day. A vehicle is busy until the trip's estimated arrival, or the
// end of the day when no arrival is known. Trips whose busy window already
// ended are skipped. When a vehicle has several trips the latest window wins.
func BusyVehicles(trips []Trip, now time.Time) []VehicleBusy {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)

	byVehicle := make(map[string]VehicleBusy)
	for _, t := range trips {
		if t.VehicleAssigned == nil || t.DateTime == nil || t.Status == TripFulfilled {
			continue
		}
		start := t.DateTime.In(now.Location())
		if start.Before(dayStart) || start.After(dayEnd) {
			continue
		}
		until := dayEnd
		if t.EstimatedArrival != nil {
			until = t.EstimatedArrival.In(now.Location())
		}
		if until.Before(now) {
			continue
		}
		if cur, ok := byVehicle[*t.VehicleAssigned]; ok && !until.After(cur.BusyUntil) {
			continue
		}
		byVehicle[*t.VehicleAssigned] = VehicleBusy{Vehicle: *t.VehicleAssigned, TripCode: t.TripCode, BusyUntil: until}
	}

	out := make([]VehicleBusy, 0, len(byVehicle))
	for _, v := range byVehicle {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b VehicleBusy) int { return cmp.Compare(a.Vehicle, b.Vehicle) })
	return out
}

// CreatedOn reports whether r was created on now's calendar day.
func CreatedOn(r Request, now time.Time) bool {
	ry, rm, rd := r.CreatedAt.In(now.Location()).Date()
	y, m, d := now.Date()
	return ry == y && rm == m && rd == d
}
