package handler

import (
	"fmt"
	"net/http"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// GetCatalog handles GET /catalog: the departments and vehicles offered by
// the request form.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.Get(r.Context())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: catalog: %w", domain.ErrTransientStore, err))
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// RefreshCatalog handles POST /catalog/refresh. Admin only.
// It drops the cached catalog and reloads it.
func (s *Server) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if !principal(r).Admin {
		s.writeError(w, r, domain.ErrForbidden)
		return
	}
	s.catalog.Invalidate()
	s.GetCatalog(w, r)
}
