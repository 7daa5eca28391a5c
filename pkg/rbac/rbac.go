// Package rbac is role-based access control middleware. It reads the
// claims middleware.Authenticate stores on the request, so it must sit
// after Authenticate in the chain.
package rbac

import (
	"net/http"

	"github.com/setulabs/setu/pkg/middleware"
	"github.com/setulabs/setu/pkg/respond"
)

// HasRole lets the request through only when the authenticated token
// carries one of the given roles. Unauthenticated requests are refused
// too, in case the chain forgot Authenticate.
func HasRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := middleware.ClaimsFromCtx(r)
			if !ok || !allowed[claims.Role] {
				body, status := respond.Error(http.StatusForbidden, "Forbidden")
				writeJSON(w, body, status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, body string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
