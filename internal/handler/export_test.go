package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/handler"
)

func exportRowFixture() domain.ExportRow {
	return domain.ExportRow{
		Timestamp:           "2024-03-15 07:30:00",
		ServiceVehicle:      "SAA 7857",
		RequestingPersonnel: "Ana Cruz",
		Department:          "EOD",
		DriverRequested:     "No",
		Purpose:             `Pick up "urgent" parts`,
		Destination:         "Batangas, Lipa",
		RequestedDateTime:   "2024-03-16 09:00:00",
		ETA:                 "15:00",
		Status:              "Pending",
	}
}

func TestEncodeCSV_quotesEveryDataFieldWithoutTrailingNewline(t *testing.T) {
	got := handler.EncodeCSV([]domain.ExportRow{exportRowFixture()})

	want := `Timestamp,Service Vehicle,Requesting Personnel,Department,Driver Requested,Delegated Driver Name,Purpose,Destination,Requested Date/Time,ETA,Status,Remarks` + "\n" +
		`"2024-03-15 07:30:00","SAA 7857","Ana Cruz","EOD","No","","Pick up ""urgent"" parts","Batangas, Lipa","2024-03-16 09:00:00","15:00","Pending",""`
	assert.Equal(t, want, got)
}

func TestEncodeCSV_noRowsIsHeaderOnly(t *testing.T) {
	got := handler.EncodeCSV(nil)

	assert.NotContains(t, got, "\n")
	assert.NotContains(t, got, `"`)
	assert.True(t, strings.HasPrefix(got, "Timestamp,Service Vehicle,"))
}

func TestGetExport_servesCSVAttachment(t *testing.T) {
	exp := &mockExporter{
		export: func(context.Context) ([]domain.ExportRow, error) {
			return []domain.ExportRow{exportRowFixture()}, nil
		},
	}
	h := newHTTPHandler(handler.Deps{Export: exp}, requester)

	rec := do(t, h, http.MethodGet, "/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="service_vehicle_requests.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, handler.EncodeCSV([]domain.ExportRow{exportRowFixture()}), rec.Body.String())
}

func TestGetExport_jsonFormat(t *testing.T) {
	exp := &mockExporter{
		export: func(context.Context) ([]domain.ExportRow, error) {
			return []domain.ExportRow{exportRowFixture()}, nil
		},
	}
	h := newHTTPHandler(handler.Deps{Export: exp}, requester)

	rec := do(t, h, http.MethodGet, "/export?format=json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "Ana Cruz", body[0]["Requesting Personnel"])
	assert.Equal(t, "15:00", body[0]["ETA"])
}
