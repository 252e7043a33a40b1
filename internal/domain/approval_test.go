package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

func ptr[T any](v T) *T { return &v }

var (
	morning   = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	afternoon = time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)
)

// pendingRequest returns a Pending request with sensible defaults.
func pendingRequest(id, requester, purpose, destination string) domain.Request {
	return domain.Request{
		ID:                id,
		RequesterName:     requester,
		Department:        "EOD",
		RequestedVehicle:  ptr("Van 1"),
		Purpose:           purpose,
		Destination:       destination,
		RequestedDateTime: morning,
		Status:            domain.RequestPending,
	}
}

// ---- new trip ---------------------------------------------------------------

func TestApproveAsNewTrip_NoOverrides(t *testing.T) {
	req := pendingRequest("r1", "Alice", "Survey", "Site A")

	gotReq, trip, err := domain.ApproveAsNewTrip(req, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250101-0001"})

	require.NoError(t, err)
	assert.Equal(t, "250101-0001", trip.TripCode)
	require.NotNil(t, trip.VehicleAssigned)
	assert.Equal(t, "Van 1", *trip.VehicleAssigned)
	assert.Equal(t, []string{"Alice"}, trip.Personnel)
	assert.Equal(t, []string{"Survey"}, trip.Purpose)
	assert.Equal(t, "Site A", trip.Destination)
	assert.Equal(t, []string{"r1"}, trip.RequestIDs)
	assert.Equal(t, domain.TripNotFulfilled, trip.Status)
	require.NotNil(t, trip.DateTime)
	assert.True(t, trip.DateTime.Equal(morning))

	assert.Equal(t, domain.RequestApproved, gotReq.Status)
	assert.Equal(t, trip.VehicleAssigned, gotReq.RequestedVehicle)
	assert.True(t, gotReq.RequestedDateTime.Equal(*trip.DateTime))
	assert.False(t, gotReq.IsDriverRequested)
	assert.Nil(t, gotReq.DelegatedDriverName)
}

func TestApproveAsNewTrip_DecisionOverrides(t *testing.T) {
	req := pendingRequest("r1", "Alice", "Survey", "Site A")

	gotReq, trip, err := domain.ApproveAsNewTrip(req, domain.Decision{
		Mode:       domain.ApproveNewTrip,
		TripCode:   "250101-0002",
		Vehicle:    ptr("Pickup 2"),
		DriverName: ptr("Dan"),
		DateTime:   ptr(afternoon),
	})

	require.NoError(t, err)
	assert.Equal(t, "Pickup 2", *trip.VehicleAssigned)
	assert.Equal(t, "Dan", *trip.DriverName)
	assert.True(t, trip.DateTime.Equal(afternoon))

	assert.Equal(t, "Pickup 2", *gotReq.RequestedVehicle)
	assert.True(t, gotReq.IsDriverRequested)
	assert.Equal(t, "Dan", *gotReq.DelegatedDriverName)
	assert.True(t, gotReq.RequestedDateTime.Equal(afternoon))
}

func TestApproveAsNewTrip_FallsBackToRequestedDriver(t *testing.T) {
	req := pendingRequest("r1", "Alice", "Survey", "Site A")
	req.IsDriverRequested = true
	req.DelegatedDriverName = ptr("Mara")

	gotReq, trip, err := domain.ApproveAsNewTrip(req, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250101-0001"})

	require.NoError(t, err)
	require.NotNil(t, trip.DriverName)
	assert.Equal(t, "Mara", *trip.DriverName)
	assert.True(t, gotReq.IsDriverRequested)
	assert.Equal(t, "Mara", *gotReq.DelegatedDriverName)
}

func TestApproveAsNewTrip_StaleDriverNameIgnored(t *testing.T) {
	req := pendingRequest("r1", "Alice", "Survey", "Site A")
	req.IsDriverRequested = false
	req.DelegatedDriverName = ptr("Leftover")

	gotReq, trip, err := domain.ApproveAsNewTrip(req, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250101-0001"})

	require.NoError(t, err)
	assert.Nil(t, trip.DriverName)
	assert.Nil(t, gotReq.DelegatedDriverName)
}

func TestApproveAsNewTrip_NotPending(t *testing.T) {
	for _, status := range []domain.RequestStatus{domain.RequestApproved, domain.RequestCancelled, domain.RequestRescheduled} {
		t.Run(string(status), func(t *testing.T) {
			req := pendingRequest("r1", "Alice", "Survey", "Site A")
			req.Status = status

			_, _, err := domain.ApproveAsNewTrip(req, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250101-0001"})

			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
}

// ---- existing trip ----------------------------------------------------------

func existingTrip() domain.Trip {
	return domain.Trip{
		ID:              "t1",
		TripCode:        "250101-0001",
		DateTime:        ptr(afternoon),
		VehicleAssigned: ptr("Van 1"),
		Personnel:       []string{"Alice"},
		Purpose:         []string{"Survey"},
		Destination:     "Site A",
		RequestIDs:      []string{"r1"},
		Status:          domain.TripNotFulfilled,
		Revision:        1,
	}
}

func TestMergeIntoTrip_DestinationUnion(t *testing.T) {
	trip := existingTrip()

	_, trip, err := domain.MergeIntoTrip(pendingRequest("r2", "Bob", "Delivery", "Site B"), trip)
	require.NoError(t, err)
	assert.Equal(t, "Site A; Site B", trip.Destination)

	_, trip, err = domain.MergeIntoTrip(pendingRequest("r3", "Cara", "Survey", "site a"), trip)
	require.NoError(t, err)
	assert.Equal(t, "Site A; Site B", trip.Destination)
	assert.Equal(t, []string{"r1", "r2", "r3"}, trip.RequestIDs)
}

func TestMergeIntoTrip_BlankAndEmptyDestinations(t *testing.T) {
	trip := existingTrip()
	trip.Destination = ""

	_, trip, err := domain.MergeIntoTrip(pendingRequest("r2", "Bob", "Delivery", "Site B"), trip)
	require.NoError(t, err)
	assert.Equal(t, "Site B", trip.Destination)

	_, trip, err = domain.MergeIntoTrip(pendingRequest("r3", "Bob", "Delivery", "  "), trip)
	require.NoError(t, err)
	assert.Equal(t, "Site B", trip.Destination)
}

func TestMergeIntoTrip_PersonnelAndPurposeDedup(t *testing.T) {
	trip := existingTrip()
	trip.Personnel = nil
	trip.Purpose = nil

	_, trip, err := domain.MergeIntoTrip(pendingRequest("r2", "Bob", "Inspection", "Site A"), trip)
	require.NoError(t, err)
	_, trip, err = domain.MergeIntoTrip(pendingRequest("r3", "Bob", "Inspection", "Site A"), trip)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bob"}, trip.Personnel)
	assert.Equal(t, []string{"Inspection"}, trip.Purpose)
}

func TestMergeIntoTrip_DedupIsCaseSensitive(t *testing.T) {
	_, trip, err := domain.MergeIntoTrip(pendingRequest("r2", "alice", "survey", "Site A"), existingTrip())

	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "alice"}, trip.Personnel)
	assert.Equal(t, []string{"Survey", "survey"}, trip.Purpose)
}

func TestMergeIntoTrip_RequestConformsToTrip(t *testing.T) {
	trip := existingTrip()
	trip.DriverName = ptr("Dan")
	req := pendingRequest("r2", "Bob", "Delivery", "Site B")
	req.RequestedVehicle = ptr("Truck 9")
	req.RequestedDateTime = morning

	gotReq, gotTrip, err := domain.MergeIntoTrip(req, trip)

	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, gotReq.Status)
	assert.Equal(t, *gotTrip.VehicleAssigned, *gotReq.RequestedVehicle)
	assert.True(t, gotReq.RequestedDateTime.Equal(*gotTrip.DateTime))
	assert.True(t, gotReq.IsDriverRequested)
	assert.Equal(t, "Dan", *gotReq.DelegatedDriverName)
	require.NotNil(t, gotReq.TripID)
	assert.Equal(t, "t1", *gotReq.TripID)

	// The trip itself is not touched by the request's original wishes.
	assert.Equal(t, "Van 1", *gotTrip.VehicleAssigned)
	assert.True(t, gotTrip.DateTime.Equal(afternoon))
}

func TestMergeIntoTrip_TripWithoutDriverClearsRequestDriver(t *testing.T) {
	req := pendingRequest("r2", "Bob", "Delivery", "Site B")

	gotReq, gotTrip, err := domain.MergeIntoTrip(req, existingTrip())

	require.NoError(t, err)
	assert.Nil(t, gotTrip.DriverName)
	assert.False(t, gotReq.IsDriverRequested)
	assert.Nil(t, gotReq.DelegatedDriverName)
}

func TestMergeIntoTrip_BackfillsUnsetTripFields(t *testing.T) {
	trip := existingTrip()
	trip.DateTime = nil
	trip.VehicleAssigned = nil
	req := pendingRequest("r2", "Bob", "Delivery", "Site B")
	req.IsDriverRequested = true
	req.DelegatedDriverName = ptr("Mara")

	gotReq, gotTrip, err := domain.MergeIntoTrip(req, trip)

	require.NoError(t, err)
	require.NotNil(t, gotTrip.DateTime)
	assert.True(t, gotTrip.DateTime.Equal(morning))
	assert.Equal(t, "Van 1", *gotTrip.VehicleAssigned)
	assert.Equal(t, "Mara", *gotTrip.DriverName)
	assert.Equal(t, "Mara", *gotReq.DelegatedDriverName)
}

func TestMergeIntoTrip_DoesNotAliasInputSlices(t *testing.T) {
	trip := existingTrip()
	trip.Personnel = make([]string, 1, 4)
	trip.Personnel[0] = "Alice"

	_, merged, err := domain.MergeIntoTrip(pendingRequest("r2", "Bob", "Delivery", "Site B"), trip)

	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, trip.Personnel)
	assert.Equal(t, []string{"Alice", "Bob"}, merged.Personnel)
}

func TestMergeIntoTrip_NotPending(t *testing.T) {
	req := pendingRequest("r2", "Bob", "Delivery", "Site B")
	req.Status = domain.RequestApproved

	_, _, err := domain.MergeIntoTrip(req, existingTrip())

	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMergeDestination(t *testing.T) {
	assert.Equal(t, "A", domain.MergeDestination("", "A"))
	assert.Equal(t, "A", domain.MergeDestination("A", ""))
	assert.Equal(t, "A; B", domain.MergeDestination("A", "B"))
	assert.Equal(t, "Main Office; Plant", domain.MergeDestination("Main Office; Plant", "main office"))
}

func TestMergeIntoTrip_RequestAlreadyInTrip(t *testing.T) {
	trip := existingTrip()
	req := pendingRequest("r1", "Alice", "Survey", "Site A")

	_, _, err := domain.MergeIntoTrip(req, trip)

	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, []string{"r1"}, trip.RequestIDs)
}
