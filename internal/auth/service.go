package auth

import (
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/filamentory/filamentory/internal/model"
	"github.com/filamentory/filamentory/internal/store"
	"github.com/filamentory/filamentory/internal/token"
	"github.com/google/uuid"
)

// Mailer delivers login and onboarding email. The login mail is the only
// delivery the flow depends on.
type Mailer interface {
	SendMagicLink(email, link, code string) error
	SendWelcome(email string) error
}

// LoginResult is returned after a login email has been issued. Code is the
// 6-digit prefix of the magic token, echoed back so the client can offer a
// type-the-code UI without waiting for the email; the full token (code plus
// random suffix) never leaves the mail.
type LoginResult struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	Code    string `json:"code"`
}

// TokenPair holds freshly issued credentials plus the user they belong to.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// Service implements the passwordless login flow: request a magic link,
// verify it (or its 6-digit code), and maintain refresh-token sessions.
type Service struct {
	users       *store.UserStore
	magicTokens *store.MagicTokenStore
	sessions    *store.SessionStore
	codec       *token.Codec
	mailer      Mailer
	appURL      string
	logger      *slog.Logger
}

func NewService(
	users *store.UserStore,
	magicTokens *store.MagicTokenStore,
	sessions *store.SessionStore,
	codec *token.Codec,
	mailer Mailer,
	appURL string,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:       users,
		magicTokens: magicTokens,
		sessions:    sessions,
		codec:       codec,
		mailer:      mailer,
		appURL:      appURL,
		logger:      logger.With("component", "auth"),
	}
}

// RequestLogin creates (or finds) the user for the email, invalidates any
// pending codes, issues a fresh magic token, and mails the link. Requesting
// again before verifying always supersedes the previous code.
func (s *Service) RequestLogin(email string) (*LoginResult, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	user, err := s.users.GetByEmail(normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		user, err = s.users.Create(normalized)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.logger.Info("new user registered", "email", normalized)
	}

	if err := s.magicTokens.InvalidateAllForUser(user.ID); err != nil {
		return nil, fmt.Errorf("invalidate pending tokens: %w", err)
	}

	value, err := s.codec.NewMagicToken()
	if err != nil {
		return nil, fmt.Errorf("generate magic token: %w", err)
	}
	mt, err := s.magicTokens.Create(user.ID, value, s.codec.Expiry(token.MagicTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("create magic token: %w", err)
	}

	link := s.appURL + "/auth/verify?token=" + value
	if err := s.mailer.SendMagicLink(user.Email, link, mt.CodePrefix()); err != nil {
		s.logger.Error("magic link delivery failed", "email", user.Email, "error", err)
		return nil, ErrEmailDelivery
	}

	return &LoginResult{
		Message: "Login link sent to your email",
		Email:   user.Email,
		Code:    mt.CodePrefix(),
	}, nil
}

// VerifyLink consumes a full magic token value and signs the user in.
func (s *Service) VerifyLink(value string) (*TokenPair, error) {
	mt, err := s.magicTokens.GetUnusedByToken(value)
	if err != nil {
		return nil, fmt.Errorf("lookup magic token: %w", err)
	}
	return s.consume(mt)
}

// VerifyCode consumes the newest pending token for the email whose 6-digit
// code matches. The code alone is enough because requesting a new login
// invalidates every earlier code for the user.
func (s *Service) VerifyCode(email, code string) (*TokenPair, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if !isSixDigits(code) {
		return nil, ErrInvalidCodeFormat
	}

	user, err := s.users.GetByEmail(normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	mt, err := s.magicTokens.GetUnusedByUserAndCode(user.ID, code)
	if err != nil {
		return nil, fmt.Errorf("lookup magic token by code: %w", err)
	}
	return s.consume(mt)
}

func (s *Service) consume(mt *model.MagicToken) (*TokenPair, error) {
	if mt == nil {
		return nil, ErrInvalidToken
	}
	if s.codec.Expired(mt.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	n, err := s.magicTokens.MarkUsed(mt.ID)
	if err != nil {
		return nil, fmt.Errorf("consume magic token: %w", err)
	}
	if n == 0 {
		// Lost the race against a concurrent verification.
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(mt.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return s.issueSession(user)
}

// Refresh rotates a refresh token: the backing session is deleted and a new
// one issued, so a stolen old token is dead the moment the real client
// refreshes.
func (s *Service) Refresh(refreshToken string) (*TokenPair, error) {
	claims := s.codec.VerifyRefreshToken(refreshToken)
	if claims == nil {
		return nil, ErrInvalidRefresh
	}

	sess, err := s.sessions.GetByRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if s.codec.Expired(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.sessions.TouchLastUsed(sess.ID); err != nil {
		s.logger.Warn("touch session failed", "session_id", sess.ID, "error", err)
	}
	if err := s.sessions.Delete(sess.ID); err != nil {
		return nil, fmt.Errorf("delete rotated session: %w", err)
	}

	return s.issueSession(user)
}

// Logout revokes the session backing the refresh token. Unknown or already
// revoked tokens are not an error; logout is idempotent.
func (s *Service) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	sess, err := s.sessions.GetByRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// UserFromAccessToken resolves the user for an access token, or nil when the
// token is invalid, expired, or the user no longer exists.
func (s *Service) UserFromAccessToken(accessToken string) *model.User {
	claims := s.codec.VerifyAccessToken(accessToken)
	if claims == nil {
		return nil
	}
	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		s.logger.Error("lookup user from token", "error", err)
		return nil
	}
	return user
}

func (s *Service) issueSession(user *model.User) (*TokenPair, error) {
	wasUnverified := !user.EmailVerified

	if err := s.users.TouchLastLogin(user.ID); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}

	accessToken, err := s.codec.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	sessionID := uuid.NewString()
	refreshToken, err := s.codec.IssueRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if _, err := s.sessions.Create(sessionID, user.ID, refreshToken, s.codec.Expiry(token.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if wasUnverified {
		go func(email string) {
			if err := s.mailer.SendWelcome(email); err != nil {
				s.logger.Warn("welcome email failed", "email", email, "error", err)
			}
		}(user.Email)
	}

	fresh, err := s.users.GetByID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         fresh,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("empty email")
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("malformed email")
	}
	return trimmed, nil
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
