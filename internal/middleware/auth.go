package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pkordes/vehicle-requests/backend/internal/auth"
	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/i18n"
)

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// Translator localizes the 401 message.
type Translator interface {
	T(ctx context.Context, messageID string, templateData ...map[string]any) string
}

// NewAuthenticator returns a middleware that requires a valid token and
// attaches the caller's principal to the request context.
//
// The token is read from the Authorization: Bearer header. Websocket
// upgrades may pass it as the access_token query parameter instead, since
// browsers cannot set headers on them; other requests never read it.
func NewAuthenticator(v TokenVerifier, tr Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, r, tr)
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				unauthorized(w, r, tr)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if !websocket.IsWebSocketUpgrade(r) {
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func unauthorized(w http.ResponseWriter, r *http.Request, tr Translator) {
	msg := i18n.MsgUnauthenticated
	if tr != nil {
		msg = tr.T(r.Context(), i18n.MsgUnauthenticated)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="vehicle-requests"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthenticated", "message": msg},
	})
}
