package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
	"github.com/pkordes/vehicle-requests/backend/internal/middleware"
)

func TestLocaleHandler_storesMatchedLocale(t *testing.T) {
	bundle, err := i18n.New("en")
	require.NoError(t, err)

	var got string
	h := middleware.NewLocaleHandler(bundle)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = i18n.LocaleFromContext(r.Context(), "")
	}))

	tests := []struct {
		header string
		want   string
	}{
		{"fil-PH,fil;q=0.9,en;q=0.8", "fil"},
		{"en-US", "en"},
		{"", "en"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/requests", nil)
		if tc.header != "" {
			req.Header.Set("Accept-Language", tc.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, tc.want, got, "Accept-Language %q", tc.header)
	}
}
