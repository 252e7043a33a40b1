package handler

import (
	"net/http"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// ListNotifications handles GET /notifications: the recent activity feed,
// newest first.
func (s *Server) ListNotifications(w http.ResponseWriter, _ *http.Request) {
	recent := s.notifications.Recent()
	if recent == nil {
		recent = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, recent)
}
