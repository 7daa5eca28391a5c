package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/setulabs/setu/pkg/auth"
	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/respond"
)

type claimsKey struct{}

// WithClaims returns a context carrying verified token claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromCtx returns the claims Authenticate stored on the request,
// if any.
func ClaimsFromCtx(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// Authenticate requires a valid bearer token and stores its claims on
// the request context for downstream role checks. Mint a token with
// `setu token`.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			body, status := respond.Unauthorized()
			writeJSON(w, body, status)
			return
		}

		claims, err := auth.ValidateToken(raw)
		if err != nil {
			logger.WithCtx(r.Context()).Warn("token rejected", "err", err)
			body, status := respond.Error(http.StatusUnauthorized, "Invalid token")
			writeJSON(w, body, status)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
