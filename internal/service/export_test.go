package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
	"github.com/pkordes/vehicle-requests/backend/internal/service"
)

func TestExportService_Export_ViewOrderAndLocalTimes(t *testing.T) {
	first := pending("r-1")
	second := pending("r-2")
	second.Status = domain.RequestApproved
	second.IsDriverRequested = true
	second.DelegatedDriverName = ptr("Jun")

	view := staticView[domain.Request]{docs: []domain.Request{first, second}, state: livesync.StateLive}
	svc := service.NewExportService(&mockRequestRepo{}, view, manila)

	rows, err := svc.Export(context.Background())

	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Created 2024-03-14 23:30 UTC, 07:30 on the 15th in Manila.
	assert.Equal(t, "2024-03-15 07:30:00", rows[0].Timestamp)
	assert.Equal(t, "No", rows[0].DriverRequested)
	assert.Equal(t, "Yes", rows[1].DriverRequested)
	assert.Equal(t, "Jun", rows[1].DelegatedDriverName)
	assert.Equal(t, "Approved", rows[1].Status)
}

func TestExportService_Export_StoreFallback(t *testing.T) {
	var gotFilter repo.RequestFilter
	r := &mockRequestRepo{
		list: func(_ context.Context, f repo.RequestFilter) ([]domain.Request, error) {
			gotFilter = f
			return []domain.Request{}, nil
		},
	}
	svc := service.NewExportService(r, nil, manila)

	rows, err := svc.Export(context.Background())

	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows, "an empty export still renders the header")
	assert.Equal(t, repo.RequestFilter{}, gotFilter)
}

func TestExportService_Export_StoreError(t *testing.T) {
	r := &mockRequestRepo{
		list: func(_ context.Context, _ repo.RequestFilter) ([]domain.Request, error) {
			return nil, errors.New("boom")
		},
	}
	svc := service.NewExportService(r, nil, manila)

	_, err := svc.Export(context.Background())

	assert.ErrorIs(t, err, domain.ErrTransientStore)
}
