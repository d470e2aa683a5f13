package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/filamentory/filamentory/internal/auth"
	"github.com/filamentory/filamentory/internal/model"
)

type fakeResolver struct {
	tokens map[string]*model.User
}

func (f *fakeResolver) UserFromAccessToken(tok string) *model.User {
	return f.tokens[tok]
}

func testResolver() *fakeResolver {
	return &fakeResolver{tokens: map[string]*model.User{
		"good-token": {ID: "user-1", Email: "alice@example.com"},
	}}
}

func authedHandler(t *testing.T, gotUser **model.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFromContext(r.Context())
		*gotUser = user
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthBearerHeader(t *testing.T) {
	var gotUser *model.User
	handler := RequireAuth(testResolver())(authedHandler(t, &gotUser))

	req := httptest.NewRequest("GET", "/api/filaments", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("context user = %+v, want user-1", gotUser)
	}
}

func TestRequireAuthCookieFallback(t *testing.T) {
	var gotUser *model.User
	handler := RequireAuth(testResolver())(authedHandler(t, &gotUser))

	req := httptest.NewRequest("GET", "/api/filaments", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil {
		t.Error("expected user from cookie token")
	}
}

func TestRequireAuthHeaderWinsOverCookie(t *testing.T) {
	var gotUser *model.User
	handler := RequireAuth(testResolver())(authedHandler(t, &gotUser))

	// A malformed header must not fall through to the valid cookie.
	req := httptest.NewRequest("GET", "/api/filaments", nil)
	req.Header.Set("Authorization", "Basic abc")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	var gotUser *model.User
	handler := RequireAuth(testResolver())(authedHandler(t, &gotUser))

	req := httptest.NewRequest("GET", "/api/filaments", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Access token required" {
		t.Errorf("error = %q, want %q", body["error"], "Access token required")
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	var gotUser *model.User
	handler := RequireAuth(testResolver())(authedHandler(t, &gotUser))

	req := httptest.NewRequest("GET", "/api/filaments", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["error"] != "Invalid or expired token" {
		t.Errorf("error = %q, want %q", body["error"], "Invalid or expired token")
	}
}

func TestOptionalAuth(t *testing.T) {
	var gotUser *model.User
	handler := OptionalAuth(testResolver())(authedHandler(t, &gotUser))

	// No token: passes through without a user.
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUser != nil {
		t.Error("expected no user without token")
	}

	// Valid token: user is populated.
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("context user = %+v, want user-1", gotUser)
	}
}
