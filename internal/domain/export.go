package domain

import (
	"time"
)

// ExportColumns is the header row of the request CSV export, in order.
var ExportColumns = []string{
	"Timestamp",
	"Service Vehicle",
	"Requesting Personnel",
	"Department",
	"Driver Requested",
	"Delegated Driver Name",
	"Purpose",
	"Destination",
	"Requested Date/Time",
	"ETA",
	"Status",
	"Remarks",
}

// ExportFilename is the download name offered for the CSV export.
const ExportFilename = "service_vehicle_requests.csv"

// ExportRow is one request flattened to display strings, one field per
// ExportColumns entry.
type ExportRow struct {
	Timestamp           string
	ServiceVehicle      string
	RequestingPersonnel string
	Department          string
	DriverRequested     string // "Yes" or "No"
	DelegatedDriverName string
	Purpose             string
	Destination         string
	RequestedDateTime   string
	ETA                 string // "15:04", empty when unset
	Status              string
	Remarks             string
}

// Fields returns the row values in column order.
func (r ExportRow) Fields() []string {
	return []string{
		r.Timestamp,
		r.ServiceVehicle,
		r.RequestingPersonnel,
		r.Department,
		r.DriverRequested,
		r.DelegatedDriverName,
		r.Purpose,
		r.Destination,
		r.RequestedDateTime,
		r.ETA,
		r.Status,
		r.Remarks,
	}
}

// NewExportRow renders req in loc. Missing timestamps render as "N/A".
func NewExportRow(req Request, loc *time.Location) ExportRow {
	row := ExportRow{
		Timestamp:           formatExportTime(req.CreatedAt, loc),
		ServiceVehicle:      deref(req.RequestedVehicle),
		RequestingPersonnel: req.RequesterName,
		Department:          req.Department,
		DriverRequested:     YesNo(req.IsDriverRequested),
		DelegatedDriverName: deref(req.DelegatedDriverName),
		Purpose:             req.Purpose,
		Destination:         req.Destination,
		RequestedDateTime:   formatExportTime(req.RequestedDateTime, loc),
		Status:              string(req.Status),
		Remarks:             req.Remarks,
	}
	if req.EstimatedArrival != nil {
		row.ETA = req.EstimatedArrival.In(loc).Format("15:04")
	}
	return row
}

// YesNo renders a boolean the way the request form answers it.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatExportTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.In(loc).Format(time.DateTime)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
