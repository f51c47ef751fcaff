package auth

import (
	"net/http"

	"github.com/promptvault/promptvault/internal/project"
)

// RequireScope gates a route on the authenticated key's scope. Only
// project-scoped keys may reach the resolution endpoints; JWT callers carry
// their scopes in the token claims.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if project.FromContext(r.Context()) == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if key := project.APIKeyFromContext(r.Context()); key != nil {
				if !key.HasScope(scope) {
					writeError(w, http.StatusForbidden, "insufficient scope")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if claims := ClaimsFromContext(r.Context()); claims != nil {
				for _, s := range claims.Scopes {
					if s == scope || s == "*" {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			writeError(w, http.StatusForbidden, "insufficient scope")
		})
	}
}
