package service_test

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/livesync"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
	"github.com/pkordes/vehicle-requests/backend/internal/service"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	create            func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID           func(ctx context.Context, id string) (domain.Trip, error)
	getByCode         func(ctx context.Context, code string) (domain.Trip, error)
	list              func(ctx context.Context) ([]domain.Trip, error)
	listCodesByPrefix func(ctx context.Context, prefix string) ([]string, error)
	update            func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	delete            func(ctx context.Context, id string) error
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id string) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) GetByCode(ctx context.Context, code string) (domain.Trip, error) {
	return m.getByCode(ctx, code)
}
func (m *mockTripRepo) List(ctx context.Context) ([]domain.Trip, error) {
	return m.list(ctx)
}
func (m *mockTripRepo) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return m.listCodesByPrefix(ctx, prefix)
}
func (m *mockTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.update(ctx, trip)
}
func (m *mockTripRepo) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

// compile-time check: mockTripRepo must satisfy repo.TripRepo.
var _ repo.TripRepo = (*mockTripRepo)(nil)

type mockRequestRepo struct {
	create  func(ctx context.Context, r domain.Request) (domain.Request, error)
	getByID func(ctx context.Context, id string) (domain.Request, error)
	list    func(ctx context.Context, f repo.RequestFilter) ([]domain.Request, error)
	update  func(ctx context.Context, r domain.Request) (domain.Request, error)
	cas     func(ctx context.Context, seen, next domain.Request) (domain.Request, error)
	delete  func(ctx context.Context, id string) error
}

func (m *mockRequestRepo) Create(ctx context.Context, r domain.Request) (domain.Request, error) {
	return m.create(ctx, r)
}
func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (domain.Request, error) {
	return m.getByID(ctx, id)
}
func (m *mockRequestRepo) List(ctx context.Context, f repo.RequestFilter) ([]domain.Request, error) {
	return m.list(ctx, f)
}
func (m *mockRequestRepo) Update(ctx context.Context, r domain.Request) (domain.Request, error) {
	return m.update(ctx, r)
}
func (m *mockRequestRepo) CompareAndUpdate(ctx context.Context, seen, next domain.Request) (domain.Request, error) {
	return m.cas(ctx, seen, next)
}
func (m *mockRequestRepo) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

var _ repo.RequestRepo = (*mockRequestRepo)(nil)

type mockBatch struct {
	commitNewTrip func(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error)
	commitMerge   func(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error)
}

func (m *mockBatch) CommitNewTrip(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	return m.commitNewTrip(ctx, req, trip)
}
func (m *mockBatch) CommitMerge(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	return m.commitMerge(ctx, req, trip)
}

var _ repo.ApprovalBatch = (*mockBatch)(nil)

// staticView is a live (or not yet live) synchronizer view.
type staticView[T any] struct {
	docs  []T
	state livesync.State
}

func (v staticView[T]) View() []T             { return v.docs }
func (v staticView[T]) State() livesync.State { return v.state }

var _ service.View[domain.Trip] = staticView[domain.Trip]{}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var _ service.Clock = fixedClock{}

type fakeCatalog struct {
	cat domain.Catalog
	err error
}

func (c fakeCatalog) Get(context.Context) (domain.Catalog, error) { return c.cat, c.err }

var _ service.CatalogSource = fakeCatalog{}

type approvalCall struct{ mode, outcome string }

type recordingMetrics struct{ calls []approvalCall }

func (r *recordingMetrics) ObserveApproval(mode, outcome string) {
	r.calls = append(r.calls, approvalCall{mode, outcome})
}

var _ service.ApprovalRecorder = (*recordingMetrics)(nil)

type recordingPublisher struct {
	events   []domain.ApprovalEvent
	attempts []domain.FailedAttempt
}

func (p *recordingPublisher) ApprovalCommitted(_ context.Context, ev domain.ApprovalEvent) {
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) AttemptFailed(_ context.Context, a domain.FailedAttempt) {
	p.attempts = append(p.attempts, a)
}

var (
	_ service.ApprovalPublisher = (*recordingPublisher)(nil)
	_ service.AttemptPublisher  = (*recordingPublisher)(nil)
)

// ---- helpers ---------------------------------------------------------------

var (
	manila = time.FixedZone("PHT", 8*60*60)
	// 2024-03-15 08:30 in Manila, still the 15th in UTC.
	now = time.Date(2024, 3, 15, 0, 30, 0, 0, time.UTC)

	admin     = domain.Principal{Subject: "u-admin", Email: "admin@example.com", Admin: true}
	requester = domain.Principal{Subject: "u-staff", Email: "staff@example.com"}
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func ptr[T any](v T) *T { return &v }

func pending(id string) domain.Request {
	return domain.Request{
		ID:                id,
		CreatedAt:         now.Add(-time.Hour),
		RequesterName:     "Ana Cruz",
		Department:        "EOD",
		RequestedVehicle:  ptr("SAA 7857"),
		Purpose:           "Site inspection",
		Destination:       "Batangas",
		RequestedDateTime: time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC),
		Status:            domain.RequestPending,
	}
}
