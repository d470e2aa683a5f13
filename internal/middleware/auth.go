package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/filamentory/filamentory/internal/auth"
	"github.com/filamentory/filamentory/internal/model"
)

const accessCookieName = "access_token"

// UserResolver turns a bearer access token into a user, or nil when the
// token does not check out.
type UserResolver interface {
	UserFromAccessToken(accessToken string) *model.User
}

// RequireAuth validates the access token and puts the user on the request
// context. The Authorization header wins over the cookie so API clients can
// override a stale browser session.
func RequireAuth(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := accessToken(r)
			if tok == "" {
				unauthorized(w, "Access token required")
				return
			}

			user := resolver.UserFromAccessToken(tok)
			if user == nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := auth.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth populates the user context when a valid token is present but
// never rejects the request.
func OptionalAuth(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := accessToken(r); tok != "" {
				if user := resolver.UserFromAccessToken(tok); user != nil {
					r = r.WithContext(auth.WithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return ""
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
