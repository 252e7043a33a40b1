package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/auth"
	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/handler"
	"github.com/pkordes/vehicle-requests/backend/internal/service"
)

// mockRequestServicer is a test double for handler.RequestServicer.
// Set only the method fields your test needs.
type mockRequestServicer struct {
	submit func(ctx context.Context, sub domain.Submission) (domain.Request, error)
	get    func(ctx context.Context, id string) (domain.Request, error)
	list   func(ctx context.Context, status *domain.RequestStatus, p domain.PaginationParams) (service.Page[domain.Request], error)
	today  func(ctx context.Context) ([]domain.Request, error)
	update func(ctx context.Context, p domain.Principal, id string, patch domain.RequestPatch) (domain.Request, error)
	delete func(ctx context.Context, p domain.Principal, id string) error
}

func (m *mockRequestServicer) Submit(ctx context.Context, sub domain.Submission) (domain.Request, error) {
	return m.submit(ctx, sub)
}
func (m *mockRequestServicer) Get(ctx context.Context, id string) (domain.Request, error) {
	return m.get(ctx, id)
}
func (m *mockRequestServicer) List(ctx context.Context, status *domain.RequestStatus, p domain.PaginationParams) (service.Page[domain.Request], error) {
	return m.list(ctx, status, p)
}
func (m *mockRequestServicer) Today(ctx context.Context) ([]domain.Request, error) {
	return m.today(ctx)
}
func (m *mockRequestServicer) Update(ctx context.Context, p domain.Principal, id string, patch domain.RequestPatch) (domain.Request, error) {
	return m.update(ctx, p, id, patch)
}
func (m *mockRequestServicer) Delete(ctx context.Context, p domain.Principal, id string) error {
	return m.delete(ctx, p, id)
}

// mockTripServicer is a test double for handler.TripServicer.
type mockTripServicer struct {
	getByCode    func(ctx context.Context, code string) (domain.Trip, error)
	list         func(ctx context.Context, p domain.PaginationParams) (service.Page[domain.Trip], error)
	nextCode     func(ctx context.Context) (string, error)
	setStatus    func(ctx context.Context, p domain.Principal, id string, status domain.TripStatus) (domain.Trip, error)
	delete       func(ctx context.Context, p domain.Principal, id string) error
	availability func(ctx context.Context) ([]domain.VehicleBusy, error)
}

func (m *mockTripServicer) GetByCode(ctx context.Context, code string) (domain.Trip, error) {
	return m.getByCode(ctx, code)
}
func (m *mockTripServicer) List(ctx context.Context, p domain.PaginationParams) (service.Page[domain.Trip], error) {
	return m.list(ctx, p)
}
func (m *mockTripServicer) NextCode(ctx context.Context) (string, error) {
	return m.nextCode(ctx)
}
func (m *mockTripServicer) SetStatus(ctx context.Context, p domain.Principal, id string, status domain.TripStatus) (domain.Trip, error) {
	return m.setStatus(ctx, p, id, status)
}
func (m *mockTripServicer) Delete(ctx context.Context, p domain.Principal, id string) error {
	return m.delete(ctx, p, id)
}
func (m *mockTripServicer) Availability(ctx context.Context) ([]domain.VehicleBusy, error) {
	return m.availability(ctx)
}

// mockApprovalServicer is a test double for handler.ApprovalServicer.
type mockApprovalServicer struct {
	approve func(ctx context.Context, p domain.Principal, requestID string, d domain.Decision) (service.ApprovalResult, error)
}

func (m *mockApprovalServicer) Approve(ctx context.Context, p domain.Principal, requestID string, d domain.Decision) (service.ApprovalResult, error) {
	return m.approve(ctx, p, requestID, d)
}

// mockExporter is a test double for handler.Exporter.
type mockExporter struct {
	export func(ctx context.Context) ([]domain.ExportRow, error)
}

func (m *mockExporter) Export(ctx context.Context) ([]domain.ExportRow, error) {
	return m.export(ctx)
}

// mockCatalog is a test double for handler.CatalogProvider.
type mockCatalog struct {
	get         func(ctx context.Context) (domain.Catalog, error)
	invalidated int
}

func (m *mockCatalog) Get(ctx context.Context) (domain.Catalog, error) {
	return m.get(ctx)
}
func (m *mockCatalog) Invalidate() { m.invalidated++ }

// mockNotifications is a test double for handler.NotificationSource.
type mockNotifications struct {
	recent []domain.Notification
}

func (m *mockNotifications) Recent() []domain.Notification { return m.recent }

// upperTranslator marks translated ids so tests can see localization ran.
type upperTranslator struct{}

func (upperTranslator) T(_ context.Context, id string, _ ...map[string]any) string {
	return "msg:" + id
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.RequestServicer    = (*mockRequestServicer)(nil)
	_ handler.TripServicer       = (*mockTripServicer)(nil)
	_ handler.ApprovalServicer   = (*mockApprovalServicer)(nil)
	_ handler.Exporter           = (*mockExporter)(nil)
	_ handler.CatalogProvider    = (*mockCatalog)(nil)
	_ handler.NotificationSource = (*mockNotifications)(nil)
	_ handler.Translator         = upperTranslator{}
)

// ---- helpers ---------------------------------------------------------------

var (
	admin     = domain.Principal{Subject: "u-admin", Email: "admin@example.com", Admin: true}
	requester = domain.Principal{Subject: "u-1", Email: "ana@example.com"}
	now       = time.Date(2024, 3, 15, 0, 30, 0, 0, time.UTC)
)

// newHTTPHandler wires a Server into a chi router the way main.go does,
// with p injected as the authenticated principal.
func newHTTPHandler(d handler.Deps, p domain.Principal) http.Handler {
	if d.Messages == nil {
		d.Messages = upperTranslator{}
	}
	srv := handler.NewServer(d)
	r := chi.NewRouter()
	srv.Public(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
			})
		})
		srv.Routes(r)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func ptr[T any](v T) *T { return &v }

func requestFixture(id string) domain.Request {
	return domain.Request{
		ID:                id,
		CreatedAt:         now.Add(-time.Hour),
		RequesterName:     "Ana Cruz",
		Department:        "EOD",
		RequestedVehicle:  ptr("SAA 7857"),
		Purpose:           "Site inspection",
		Destination:       "Batangas",
		RequestedDateTime: time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC),
		Status:            domain.RequestPending,
	}
}

func tripFixture(id, code string) domain.Trip {
	dt := time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC)
	return domain.Trip{
		ID:              id,
		TripCode:        code,
		DateTime:        &dt,
		VehicleAssigned: ptr("SAA 7857"),
		Personnel:       []string{"Ana Cruz"},
		Purpose:         []string{"Site inspection"},
		Destination:     "Batangas",
		RequestIDs:      []string{"r-1"},
		Status:          domain.TripNotFulfilled,
		Revision:        1,
	}
}
