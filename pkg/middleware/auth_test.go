package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/setulabs/setu/pkg/auth"
	"github.com/setulabs/setu/pkg/middleware"
)

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/routes", nil)

	middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/routes", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticateInjectsClaims(t *testing.T) {
	tok, err := auth.GenerateToken("ops", "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/routes", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	var got *auth.Claims
	middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = middleware.ClaimsFromCtx(r)
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.Role != "admin" || got.Subject != "ops" {
		t.Fatalf("claims = %+v", got)
	}
}
