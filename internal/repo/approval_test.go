package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

func TestApprovalBatch_CommitNewTrip(t *testing.T) {
	tx := newTestTx(t)
	requests := repo.NewRequestRepo(tx)
	batch := repo.NewApprovalBatch(tx)
	ctx := context.Background()

	pending, err := requests.Create(ctx, requestFixture("Alice"))
	require.NoError(t, err)

	req, trip, err := domain.ApproveAsNewTrip(pending, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250601-0001"})
	require.NoError(t, err)

	gotReq, gotTrip, err := batch.CommitNewTrip(ctx, req, trip)
	require.NoError(t, err)

	assert.Equal(t, domain.RequestApproved, gotReq.Status)
	require.NotNil(t, gotReq.TripID)
	assert.Equal(t, gotTrip.ID, *gotReq.TripID)
	assert.Equal(t, []string{pending.ID}, gotTrip.RequestIDs)
}

func TestApprovalBatch_CommitNewTrip_RollsBackWhenRequestNoLongerPending(t *testing.T) {
	tx := newTestTx(t)
	requests := repo.NewRequestRepo(tx)
	trips := repo.NewTripRepo(tx)
	batch := repo.NewApprovalBatch(tx)
	ctx := context.Background()

	pending, err := requests.Create(ctx, requestFixture("Alice"))
	require.NoError(t, err)
	req, trip, err := domain.ApproveAsNewTrip(pending, domain.Decision{Mode: domain.ApproveNewTrip, TripCode: "250601-0001"})
	require.NoError(t, err)

	// Another admin cancels the request first.
	pending.Status = domain.RequestCancelled
	_, err = requests.Update(ctx, pending)
	require.NoError(t, err)

	_, _, err = batch.CommitNewTrip(ctx, req, trip)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = trips.GetByCode(ctx, "250601-0001")
	assert.ErrorIs(t, err, domain.ErrNotFound, "trip creation must be rolled back")
}

func TestApprovalBatch_CommitMerge(t *testing.T) {
	tx := newTestTx(t)
	requests := repo.NewRequestRepo(tx)
	trips := repo.NewTripRepo(tx)
	batch := repo.NewApprovalBatch(tx)
	ctx := context.Background()

	existing, err := trips.Create(ctx, tripFixture("250601-0001"))
	require.NoError(t, err)
	second := requestFixture("Bob")
	second.Destination = "Site B"
	pending, err := requests.Create(ctx, second)
	require.NoError(t, err)

	req, trip, err := domain.MergeIntoTrip(pending, existing)
	require.NoError(t, err)
	gotReq, gotTrip, err := batch.CommitMerge(ctx, req, trip)
	require.NoError(t, err)

	assert.Equal(t, "Site A; Site B", gotTrip.Destination)
	assert.Equal(t, []string{"Alice", "Bob"}, gotTrip.Personnel)
	assert.Equal(t, existing.Revision+1, gotTrip.Revision)
	assert.Equal(t, domain.RequestApproved, gotReq.Status)
	assert.Equal(t, existing.ID, *gotReq.TripID)
}

func TestApprovalBatch_CommitMerge_StaleTrip(t *testing.T) {
	tx := newTestTx(t)
	requests := repo.NewRequestRepo(tx)
	trips := repo.NewTripRepo(tx)
	batch := repo.NewApprovalBatch(tx)
	ctx := context.Background()

	existing, err := trips.Create(ctx, tripFixture("250601-0001"))
	require.NoError(t, err)
	pending, err := requests.Create(ctx, requestFixture("Bob"))
	require.NoError(t, err)

	req, trip, err := domain.MergeIntoTrip(pending, existing)
	require.NoError(t, err)

	// A concurrent merge lands first.
	_, err = trips.Update(ctx, existing)
	require.NoError(t, err)

	_, _, err = batch.CommitMerge(ctx, req, trip)
	require.ErrorIs(t, err, domain.ErrConflict)

	still, err := requests.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, still.Status, "request must be left untouched")
}
