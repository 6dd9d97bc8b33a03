package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/flatmate/internal/auth"
)

// SessionCookieName is the cookie holding a browser session token.
const SessionCookieName = "flatmate_session"

// Authenticator resolves request credentials to an identity. Both methods
// return nil without an error when the credential is not valid.
type Authenticator interface {
	IdentityFromSession(token string) (*auth.Identity, error)
	IdentityFromToken(token string) (*auth.Identity, error)
}

// RequireAuth accepts a bearer token or the session cookie and puts the
// resulting Identity in the request context. Anything else gets a 401.
func RequireAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identify(authn, r)
			if err != nil {
				logger.Error("authenticate request", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if id == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := auth.WithIdentity(r.Context(), *id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identify(authn Authenticator, r *http.Request) (*auth.Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return nil, nil
		}
		return authn.IdentityFromToken(token)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return authn.IdentityFromSession(cookie.Value)
}
