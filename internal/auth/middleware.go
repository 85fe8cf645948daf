package auth

import (
	"context"
	"net/http"

	"github.com/ir-comercio/estoque-api/internal/platform/httpx"
)

type contextKey struct{}

// SessionFromContext returns the session attached by RequireSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// RequireSession rejects requests without a valid portal session. The
// token travels in the X-Session-Token header or, for direct browser
// navigation, the sessionToken query parameter.
func RequireSession(v *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Session-Token")
			if token == "" {
				token = r.URL.Query().Get("sessionToken")
			}
			if token == "" {
				httpx.Unauthorized(w, "Sessão não informada")
				return
			}

			session, err := v.Validate(r.Context(), token)
			if err != nil {
				httpx.Unauthorized(w, "Sessão inválida ou expirada")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, session)))
		})
	}
}
