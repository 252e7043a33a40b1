package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/handler"
)

// TestGetHealth_returns200WithOKStatus verifies that GET /healthz returns
// HTTP 200 and a JSON body of {"status":"ok"}.
func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	h := newHTTPHandler(handler.Deps{}, domain.Principal{})

	rec := do(t, h, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body handler.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestGetOpenAPI_servesDocument(t *testing.T) {
	h := newHTTPHandler(handler.Deps{OpenAPI: []byte("openapi: 3.0.3\n")}, domain.Principal{})

	rec := do(t, h, http.MethodGet, "/openapi.yaml", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "openapi: 3.0.3\n", rec.Body.String())
}

func TestGetCatalog_returnsLists(t *testing.T) {
	cat := &mockCatalog{
		get: func(context.Context) (domain.Catalog, error) {
			return domain.Catalog{
				Departments: []domain.Department{{Name: "EOD"}},
				Vehicles:    []domain.Vehicle{{Name: "SAA 7857"}},
			}, nil
		},
	}
	h := newHTTPHandler(handler.Deps{Catalog: cat}, requester)

	rec := do(t, h, http.MethodGet, "/catalog", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"departments":[{"name":"EOD"}],"vehicles":[{"name":"SAA 7857"}]}`, rec.Body.String())
}

func TestGetCatalog_loadFailureReturns503(t *testing.T) {
	cat := &mockCatalog{
		get: func(context.Context) (domain.Catalog, error) { return domain.Catalog{}, errors.New("no such file") },
	}
	h := newHTTPHandler(handler.Deps{Catalog: cat}, requester)

	rec := do(t, h, http.MethodGet, "/catalog", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshCatalog_adminInvalidates(t *testing.T) {
	cat := &mockCatalog{
		get: func(context.Context) (domain.Catalog, error) { return domain.Catalog{}, nil },
	}
	h := newHTTPHandler(handler.Deps{Catalog: cat}, admin)

	rec := do(t, h, http.MethodPost, "/catalog/refresh", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cat.invalidated)
}

func TestRefreshCatalog_nonAdminForbidden(t *testing.T) {
	cat := &mockCatalog{}
	h := newHTTPHandler(handler.Deps{Catalog: cat}, requester)

	rec := do(t, h, http.MethodPost, "/catalog/refresh", nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, cat.invalidated)
}

func TestListNotifications_returnsRecent(t *testing.T) {
	n := domain.Notification{
		ID:        uuid.New(),
		Type:      domain.NotificationApproved,
		Details:   "Request from Ana Cruz was approved into trip 240316-0001",
		Timestamp: now,
	}
	h := newHTTPHandler(handler.Deps{Notifications: &mockNotifications{recent: []domain.Notification{n}}}, requester)

	rec := do(t, h, http.MethodGet, "/notifications", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []domain.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, n.ID, body[0].ID)
}

func TestListNotifications_emptyIsArray(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Notifications: &mockNotifications{}}, requester)

	rec := do(t, h, http.MethodGet, "/notifications", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
