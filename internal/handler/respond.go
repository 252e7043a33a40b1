package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
)

// ErrorDetail is the payload of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse wraps ErrorDetail as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// errBadBody marks a body rejected before reaching the service layer.
var errBadBody = errors.New("malformed body")

// errTooLarge marks a body that exceeded the size limit.
var errTooLarge = errors.New("body too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object into dst. Unknown fields are
// rejected so typos in optional fields do not silently drop data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errTooLarge
		}
		return fmt.Errorf("%w: %s", errBadBody, err.Error())
	}
	return nil
}

// writeError maps err onto the HTTP status and localized body for the error
// taxonomy. Anything outside the taxonomy is logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
		msgID  string
		detail string
	)
	switch {
	case errors.Is(err, errTooLarge):
		status, code, msgID = http.StatusRequestEntityTooLarge, "payload_too_large", i18n.MsgTooLarge
	case errors.Is(err, errBadBody):
		status, code, msgID = http.StatusBadRequest, "bad_request", i18n.MsgBadRequest
		detail = detailAfter(err, errBadBody)
	// ErrForbidden wraps ErrInvalidState, so it must be matched first.
	case errors.Is(err, domain.ErrForbidden):
		status, code, msgID = http.StatusForbidden, "forbidden", i18n.MsgForbidden
	case errors.Is(err, domain.ErrValidation):
		status, code, msgID = http.StatusUnprocessableEntity, "validation_error", i18n.MsgValidation
		detail = detailAfter(err, domain.ErrValidation)
	case errors.Is(err, domain.ErrConflict):
		status, code, msgID = http.StatusConflict, "conflict", i18n.MsgConflict
		detail = detailAfter(err, domain.ErrConflict)
	case errors.Is(err, domain.ErrInvalidState):
		status, code, msgID = http.StatusConflict, "invalid_state", i18n.MsgInvalidState
		detail = detailAfter(err, domain.ErrInvalidState)
	case errors.Is(err, domain.ErrNotFound):
		status, code, msgID = http.StatusNotFound, "not_found", i18n.MsgNotFound
	case errors.Is(err, domain.ErrTransientStore):
		status, code, msgID = http.StatusServiceUnavailable, "unavailable", i18n.MsgUnavailable
		s.logger.WarnContext(r.Context(), "datastore unavailable", "path", r.URL.Path, "error", err)
	default:
		status, code, msgID = http.StatusInternalServerError, "internal_error", i18n.MsgInternal
		s.logger.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: s.translate(r, msgID),
		Detail:  detail,
	}})
}

func (s *Server) translate(r *http.Request, id string) string {
	if s.messages == nil {
		return id
	}
	return s.messages.T(r.Context(), id)
}

// detailAfter extracts the human-readable part that follows a sentinel.
// e.g. "service.RequestService.Submit: validation error: missing required fields: purpose"
// yields "missing required fields: purpose".
func detailAfter(err, sentinel error) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return ""
}
