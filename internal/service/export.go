package service

import (
	"context"
	"time"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// ExportService flattens every request into CSV-ready rows.
type ExportService struct {
	repo repo.RequestRepo
	view View[domain.Request]
	loc  *time.Location
}

// NewExportService constructs an ExportService. view may be nil.
func NewExportService(r repo.RequestRepo, view View[domain.Request], loc *time.Location) *ExportService {
	return &ExportService{repo: r, view: view, loc: loc}
}

// Export returns one row per request in list order: Pending first, then
// newest first. Times are rendered in the configured zone.
func (s *ExportService) Export(ctx context.Context) ([]domain.ExportRow, error) {
	reqs, ok := liveView(s.view)
	if !ok {
		var err error
		reqs, err = s.repo.List(ctx, repo.RequestFilter{})
		if err != nil {
			return nil, storeErr("service.ExportService.Export", err)
		}
	}

	rows := make([]domain.ExportRow, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, domain.NewExportRow(r, s.loc))
	}
	return rows, nil
}
