// Package handler implements the HTTP handlers for the vehicle request API.
// All handlers are methods on Server. They are split into domain-specific
// files (requests.go, trips.go, etc.) but share the same Server struct so
// they can reach its dependencies.
package handler

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/service"
)

// RequestServicer defines the request operations the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without touching the datastore or service layer.
type RequestServicer interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.Request, error)
	Get(ctx context.Context, id string) (domain.Request, error)
	List(ctx context.Context, status *domain.RequestStatus, p domain.PaginationParams) (service.Page[domain.Request], error)
	Today(ctx context.Context) ([]domain.Request, error)
	Update(ctx context.Context, p domain.Principal, id string, patch domain.RequestPatch) (domain.Request, error)
	Delete(ctx context.Context, p domain.Principal, id string) error
}

// TripServicer defines the trip operations the handlers depend on.
type TripServicer interface {
	GetByCode(ctx context.Context, code string) (domain.Trip, error)
	List(ctx context.Context, p domain.PaginationParams) (service.Page[domain.Trip], error)
	NextCode(ctx context.Context) (string, error)
	SetStatus(ctx context.Context, p domain.Principal, id string, status domain.TripStatus) (domain.Trip, error)
	Delete(ctx context.Context, p domain.Principal, id string) error
	Availability(ctx context.Context) ([]domain.VehicleBusy, error)
}

// ApprovalServicer approves Pending requests.
type ApprovalServicer interface {
	Approve(ctx context.Context, p domain.Principal, requestID string, d domain.Decision) (service.ApprovalResult, error)
}

// Exporter produces the CSV export rows.
type Exporter interface {
	Export(ctx context.Context) ([]domain.ExportRow, error)
}

// CatalogProvider serves the reference lists and can be told to reload them.
type CatalogProvider interface {
	Get(ctx context.Context) (domain.Catalog, error)
	Invalidate()
}

// NotificationSource returns the recent activity feed.
type NotificationSource interface {
	Recent() []domain.Notification
}

// Translator localizes user-facing messages.
type Translator interface {
	T(ctx context.Context, messageID string, templateData ...map[string]any) string
}

// Deps collects the Server's collaborators.
type Deps struct {
	Requests      RequestServicer
	Trips         TripServicer
	Approvals     ApprovalServicer
	Export        Exporter
	Catalog       CatalogProvider
	Notifications NotificationSource
	Messages      Translator
	Logger        *slog.Logger
	// OpenAPI is the raw document served at /openapi.yaml.
	OpenAPI []byte
}

// Server holds the dependencies shared by every handler.
type Server struct {
	requests      RequestServicer
	trips         TripServicer
	approvals     ApprovalServicer
	export        Exporter
	catalog       CatalogProvider
	notifications NotificationSource
	messages      Translator
	logger        *slog.Logger
	openAPI       []byte
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		requests:      d.Requests,
		trips:         d.Trips,
		approvals:     d.Approvals,
		export:        d.Export,
		catalog:       d.Catalog,
		notifications: d.Notifications,
		messages:      d.Messages,
		logger:        d.Logger,
		openAPI:       d.OpenAPI,
	}
}

// Public registers the endpoints that need no principal.
func (s *Server) Public(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
}

// Routes registers the authenticated API. Every handler expects a principal
// in the request context.
func (s *Server) Routes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", s.SubmitRequest)
		r.Get("/", s.ListRequests)
		r.Get("/today", s.ListTodayRequests)
		r.Get("/{id}", s.GetRequest)
		r.Patch("/{id}", s.UpdateRequest)
		r.Delete("/{id}", s.DeleteRequest)
		r.Post("/{id}/approve", s.ApproveRequest)
	})
	r.Route("/trips", func(r chi.Router) {
		r.Get("/", s.ListTrips)
		r.Get("/next-code", s.GetNextTripCode)
		r.Get("/{trip}", s.GetTrip)
		r.Put("/{trip}/status", s.SetTripStatus)
		r.Delete("/{trip}", s.DeleteTrip)
	})
	r.Get("/vehicles/availability", s.GetAvailability)
	r.Get("/catalog", s.GetCatalog)
	r.Post("/catalog/refresh", s.RefreshCatalog)
	r.Get("/notifications", s.ListNotifications)
	r.Get("/export", s.GetExport)
}
