package httpapi

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/roniherschmann/linkpulse/internal/auth"
)

const authCookie = "auth_token"

// identify attaches the owner carried by a bearer token or the auth_token cookie.
// Requests without a valid token continue anonymously.
func (rt *Router) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" || rt.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		owner, err := rt.tokens.Verify(raw)
		if err != nil {
			hlog.FromRequest(r).Debug().Err(err).Msg("ignoring invalid token")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), owner)))
	})
}

func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.OwnerFrom(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(authCookie); err == nil {
		return c.Value
	}
	return ""
}
