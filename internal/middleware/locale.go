package middleware

import (
	"net/http"

	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
)

// LocaleMatcher picks the supported locale closest to an Accept-Language value.
type LocaleMatcher interface {
	Match(acceptLanguage string) string
}

// NewLocaleHandler returns a middleware that stores the caller's preferred
// locale in the request context for the message translator.
func NewLocaleHandler(m LocaleMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := m.Match(r.Header.Get("Accept-Language"))
			next.ServeHTTP(w, r.WithContext(i18n.WithLocale(r.Context(), locale)))
		})
	}
}
