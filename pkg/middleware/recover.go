// Package middleware holds the http middleware the bridge composes
// around the dispatcher: panic recovery, request logging, CORS, rate
// limiting, and bearer-token authentication.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/respond"
)

// Recovery catches panics raised in the middleware chain itself, logs the
// stack, and answers 500. Handler panics never reach it: the dispatcher
// contains those and maps them to its own in-band 500. Add Recovery
// early in the chain so it wraps everything registered after it.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					"error", fmt.Sprintf("%v", err),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				body, status := respond.Error(http.StatusInternalServerError, "Internal Server Error")
				writeJSON(w, body, status)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a (body, status) pair produced by respond helpers.
func writeJSON(w http.ResponseWriter, body string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
