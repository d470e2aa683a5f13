package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/filamentory/filamentory/internal/auth"
	"github.com/filamentory/filamentory/internal/middleware"
	"github.com/filamentory/filamentory/internal/token"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	refreshPath   = "/api/auth/refresh"
)

// CookieConfig controls the attributes of the auth cookies.
type CookieConfig struct {
	Domain string
	Secure bool
}

type AuthHandler struct {
	service *auth.Service
	limiter *middleware.RateLimiter
	cookies CookieConfig
	logger  *slog.Logger
}

func NewAuthHandler(service *auth.Service, limiter *middleware.RateLimiter, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		limiter: limiter,
		cookies: cookies,
		logger:  logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login requests a magic link. Limited to 3 requests per hour per IP+email
// pair, counting only failed attempts: a successful send refunds its slot so
// a user who mistypes the address is not locked out by their own successes.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	key := "login:" + middleware.RealIP(r) + ":" + strings.ToLower(strings.TrimSpace(req.Email))
	if !h.limiter.Allow(key, 3, time.Hour) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many login attempts, please try again later"})
		return
	}

	result, err := h.service.RequestLogin(req.Email)
	if err != nil {
		h.writeAuthError(w, err, "request login")
		return
	}

	h.limiter.Refund(key)
	writeJSON(w, http.StatusOK, result)
}

// Verify consumes a full magic token from the emailed link. The link is a
// plain GET so it works from any mail client.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	rememberMe := r.URL.Query().Get("rememberMe") == "true"

	pair, err := h.service.VerifyLink(r.URL.Query().Get("token"))
	if err != nil {
		h.writeAuthError(w, err, "verify link")
		return
	}

	h.setAuthCookies(w, pair.AccessToken, pair.RefreshToken, rememberMe)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    pair.User,
		"message": "Login successful",
	})
}

type verifyCodeRequest struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	RememberMe bool   `json:"rememberMe"`
}

// VerifyCode consumes the typed 6-digit code instead of the link.
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	pair, err := h.service.VerifyCode(req.Email, req.Code)
	if err != nil {
		h.writeAuthError(w, err, "verify code")
		return
	}

	h.setAuthCookies(w, pair.AccessToken, pair.RefreshToken, req.RememberMe)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    pair.User,
		"message": "Login successful",
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the refresh token. The token comes from the scoped cookie,
// with a JSON body fallback for non-browser clients.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFrom(r)
	if refreshToken == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Refresh token required"})
		return
	}

	pair, err := h.service.Refresh(refreshToken)
	if err != nil {
		h.clearAuthCookies(w)
		h.writeAuthError(w, err, "refresh")
		return
	}

	h.setAuthCookies(w, pair.AccessToken, pair.RefreshToken, true)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// Logout revokes the current session, if any, and clears cookies. It always
// succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFrom(r)
	if err := h.service.Logout(refreshToken); err != nil {
		h.logger.Warn("logout", "error", err)
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Access token required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// setAuthCookies installs both tokens. Without rememberMe they become
// session cookies that die with the browser; the server-side session still
// expires on its own schedule either way.
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, rememberMe bool) {
	accessMaxAge, refreshMaxAge := 0, 0
	if rememberMe {
		accessMaxAge = int(token.AccessTTL.Seconds())
		refreshMaxAge = int(token.RefreshTTL.Seconds())
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    accessToken,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   accessMaxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    refreshToken,
		Path:     refreshPath,
		Domain:   h.cookies.Domain,
		MaxAge:   refreshMaxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     refreshPath,
		Domain:   h.cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps flow errors to their status: refresh and session
// failures are 401, everything else in the taxonomy (validation,
// verification, delivery) is 400. Errors outside the taxonomy are internal.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error, op string) {
	var authErr *auth.Error
	if !errors.As(err, &authErr) {
		h.logger.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	status := http.StatusBadRequest
	switch authErr {
	case auth.ErrInvalidRefresh, auth.ErrSessionNotFound, auth.ErrSessionExpired:
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]string{"error": authErr.Message})
}
