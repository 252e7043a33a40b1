package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

func validSubmission() domain.Submission {
	return domain.Submission{
		RequesterName:       "Alice",
		Department:          "EOD",
		IsDriverRequested:   ptr(true),
		DelegatedDriverName: ptr("Dan"),
		Purpose:             "Survey",
		Destination:         "Site A",
		RequestedDateTime:   ptr(morning),
	}
}

func TestNewRequest_Valid(t *testing.T) {
	now := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

	got, err := domain.NewRequest(validSubmission(), now)

	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, "Dan", *got.DelegatedDriverName)
}

func TestNewRequest_MissingFields(t *testing.T) {
	_, err := domain.NewRequest(domain.Submission{Department: "EOD"}, time.Now())

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "requester_name")
	assert.ErrorContains(t, err, "is_driver_requested")
	assert.ErrorContains(t, err, "requested_date_time")
	assert.NotContains(t, err.Error(), "department")
}

func TestNewRequest_ETABeforeDeparture(t *testing.T) {
	sub := validSubmission()
	sub.EstimatedArrival = ptr(morning.Add(-time.Hour))

	_, err := domain.NewRequest(sub, time.Now())

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewRequest_DriverNameDroppedWhenNotRequested(t *testing.T) {
	sub := validSubmission()
	sub.IsDriverRequested = ptr(false)

	got, err := domain.NewRequest(sub, time.Now())

	require.NoError(t, err)
	assert.Nil(t, got.DelegatedDriverName)
}

func TestNormalizeRequest_CompletedDate(t *testing.T) {
	done := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	kept := domain.NormalizeRequest(domain.Request{Remarks: "Trip COMPLETED on time", CompletedDate: &done})
	cleared := domain.NormalizeRequest(domain.Request{Remarks: "in progress", CompletedDate: &done})

	assert.NotNil(t, kept.CompletedDate)
	assert.Nil(t, cleared.CompletedDate)
}

func TestApplyPatch_TogglingDriverOffClearsName(t *testing.T) {
	r := domain.Request{IsDriverRequested: true, DelegatedDriverName: ptr("Dan"), Status: domain.RequestPending}

	got, err := domain.ApplyPatch(r, domain.RequestPatch{IsDriverRequested: ptr(false)})

	require.NoError(t, err)
	assert.False(t, got.IsDriverRequested)
	assert.Nil(t, got.DelegatedDriverName)
}

func TestApplyPatch_RejectsApproval(t *testing.T) {
	r := domain.Request{Status: domain.RequestPending}

	_, err := domain.ApplyPatch(r, domain.RequestPatch{Status: ptr(domain.RequestApproved)})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApplyPatch_ApprovedRequestCannotLeaveItsTrip(t *testing.T) {
	approved, _, err := domain.ApproveAsNewTrip(domain.Request{
		ID:                "r1",
		RequesterName:     "Alice",
		Department:        "EOD",
		Purpose:           "Survey",
		Destination:       "Site A",
		RequestedDateTime: morning,
		Status:            domain.RequestPending,
	}, domain.Decision{Mode: domain.ApproveNewTrip})
	require.NoError(t, err)
	approved.TripID = ptr("t1")

	for _, status := range []domain.RequestStatus{domain.RequestPending, domain.RequestRescheduled, domain.RequestCancelled} {
		_, err := domain.ApplyPatch(approved, domain.RequestPatch{Status: ptr(status)})
		assert.ErrorIs(t, err, domain.ErrInvalidState, status)
	}

	got, err := domain.ApplyPatch(approved, domain.RequestPatch{Status: ptr(domain.RequestApproved), Remarks: ptr("late")})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, got.Status)
	assert.Equal(t, "t1", *got.TripID)
}

func TestApplyPatch_ApprovedWithoutTripCanChangeStatus(t *testing.T) {
	r := domain.Request{RequesterName: "Alice", Department: "EOD", Purpose: "Survey", Destination: "Site A", Status: domain.RequestApproved}

	got, err := domain.ApplyPatch(r, domain.RequestPatch{Status: ptr(domain.RequestCancelled)})

	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.Status)
}

func TestApplyPatch_RejectsBlankRequired(t *testing.T) {
	r := domain.Request{RequesterName: "Alice", Status: domain.RequestPending}

	_, err := domain.ApplyPatch(r, domain.RequestPatch{RequesterName: ptr("  ")})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApplyPatch_AdminFields(t *testing.T) {
	r := domain.Request{Status: domain.RequestApproved}

	got, err := domain.ApplyPatch(r, domain.RequestPatch{
		Status:      ptr(domain.RequestCancelled),
		IssueFaced:  ptr("flat tire"),
		ActionTaken: ptr("rescheduled"),
		Remarks:     ptr("completed"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RequestCancelled, got.Status)
	assert.Equal(t, "flat tire", got.IssueFaced)
	assert.Equal(t, "rescheduled", got.ActionTaken)
}

func TestSortRequests(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reqs := []domain.Request{
		{ID: "a", Status: domain.RequestCancelled, CreatedAt: t0.Add(3 * time.Hour)},
		{ID: "b", Status: domain.RequestApproved, CreatedAt: t0.Add(1 * time.Hour)},
		{ID: "c", Status: "Archived", CreatedAt: t0.Add(9 * time.Hour)},
		{ID: "d", Status: domain.RequestPending, CreatedAt: t0},
		{ID: "e", Status: domain.RequestPending, CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "f", Status: domain.RequestRescheduled, CreatedAt: t0},
	}

	domain.SortRequests(reqs)

	var ids []string
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"e", "d", "b", "f", "a", "c"}, ids)
}

func TestStatusRank(t *testing.T) {
	assert.Equal(t, 1, domain.RequestPending.Rank())
	assert.Equal(t, 4, domain.RequestCancelled.Rank())
	assert.Equal(t, 99, domain.RequestStatus("").Rank())
}
