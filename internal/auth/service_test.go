package auth

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/filamentory/filamentory/internal/database"
	"github.com/filamentory/filamentory/internal/store"
	"github.com/filamentory/filamentory/internal/token"
)

type fakeMailer struct {
	mu       sync.Mutex
	links    []string
	codes    []string
	welcomes []string
	linkErr  error
}

func (m *fakeMailer) SendMagicLink(email, link, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkErr != nil {
		return m.linkErr
	}
	m.links = append(m.links, link)
	m.codes = append(m.codes, code)
	return nil
}

func (m *fakeMailer) SendWelcome(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, email)
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		t.Fatal("no magic link mail sent")
	}
	return m.codes[len(m.codes)-1]
}

type testEnv struct {
	service     *Service
	mailer      *fakeMailer
	magicTokens *store.MagicTokenStore
	sessions    *store.SessionStore
	users       *store.UserStore
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	magicTokens := store.NewMagicTokenStore(db)
	sessions := store.NewSessionStore(db)
	codec := token.NewCodec("test-secret")
	mailer := &fakeMailer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(users, magicTokens, sessions, codec, mailer, "http://localhost:3000", logger)
	return &testEnv{service: svc, mailer: mailer, magicTokens: magicTokens, sessions: sessions, users: users}
}

func TestRequestLoginCreatesUser(t *testing.T) {
	env := setupService(t)

	result, err := env.service.RequestLogin("Alice@Example.com ")
	if err != nil {
		t.Fatalf("request login: %v", err)
	}
	if result.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized %q", result.Email, "alice@example.com")
	}
	if len(result.Code) != 6 {
		t.Errorf("code = %q, want 6 digits", result.Code)
	}
	if result.Code != env.mailer.lastCode(t) {
		t.Error("returned code should match the mailed code")
	}

	user, _ := env.users.GetByEmail("alice@example.com")
	if user == nil {
		t.Fatal("expected user to be created")
	}
	if user.EmailVerified {
		t.Error("user should not be verified before first login")
	}
}

func TestRequestLoginInvalidEmail(t *testing.T) {
	env := setupService(t)

	for _, email := range []string{"", "   ", "not-an-email", "a@b c"} {
		if _, err := env.service.RequestLogin(email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("RequestLogin(%q) err = %v, want ErrInvalidEmail", email, err)
		}
	}
}

func TestRequestLoginSupersedesPreviousCode(t *testing.T) {
	env := setupService(t)

	first, err := env.service.RequestLogin("alice@example.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := env.service.RequestLogin("alice@example.com")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if _, err := env.service.VerifyCode("alice@example.com", first.Code); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("old code err = %v, want ErrInvalidToken", err)
	}
	if _, err := env.service.VerifyCode("alice@example.com", second.Code); err != nil {
		t.Errorf("new code err = %v, want nil", err)
	}
}

func TestRequestLoginEmailFailure(t *testing.T) {
	env := setupService(t)
	env.mailer.linkErr = errors.New("smtp down")

	if _, err := env.service.RequestLogin("alice@example.com"); !errors.Is(err, ErrEmailDelivery) {
		t.Errorf("err = %v, want ErrEmailDelivery", err)
	}
}

func TestVerifyLink(t *testing.T) {
	env := setupService(t)

	env.service.RequestLogin("alice@example.com")
	user, _ := env.users.GetByEmail("alice@example.com")
	mt, _ := env.magicTokens.GetUnusedByUserAndCode(user.ID, env.mailer.lastCode(t))

	pair, err := env.service.VerifyLink(mt.Token)
	if err != nil {
		t.Fatalf("verify link: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}
	if pair.User.Email != "alice@example.com" {
		t.Errorf("user email = %q", pair.User.Email)
	}
	if !pair.User.EmailVerified {
		t.Error("user should be verified after login")
	}
	if pair.User.LastLogin == nil {
		t.Error("last_login should be set after login")
	}

	sess, _ := env.sessions.GetByRefreshToken(pair.RefreshToken)
	if sess == nil {
		t.Fatal("expected a session backing the refresh token")
	}
	if sess.UserID != pair.User.ID {
		t.Errorf("session user = %q, want %q", sess.UserID, pair.User.ID)
	}
}

func TestVerifyLinkSingleUse(t *testing.T) {
	env := setupService(t)

	env.service.RequestLogin("alice@example.com")
	user, _ := env.users.GetByEmail("alice@example.com")
	mt, _ := env.magicTokens.GetUnusedByUserAndCode(user.ID, env.mailer.lastCode(t))

	if _, err := env.service.VerifyLink(mt.Token); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := env.service.VerifyLink(mt.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("second verify err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyLinkExpired(t *testing.T) {
	env := setupService(t)

	env.service.RequestLogin("alice@example.com")
	user, _ := env.users.GetByEmail("alice@example.com")

	expired, _ := env.magicTokens.Create(user.ID, "999999-feedface", time.Now().UTC().Add(-time.Minute))

	if _, err := env.service.VerifyLink(expired.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyLinkUnknown(t *testing.T) {
	env := setupService(t)

	if _, err := env.service.VerifyLink("000000-deadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyCodeFormat(t *testing.T) {
	env := setupService(t)
	env.service.RequestLogin("alice@example.com")

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		if _, err := env.service.VerifyCode("alice@example.com", code); !errors.Is(err, ErrInvalidCodeFormat) {
			t.Errorf("VerifyCode(%q) err = %v, want ErrInvalidCodeFormat", code, err)
		}
	}
}

func TestVerifyCodeUnknownEmail(t *testing.T) {
	env := setupService(t)

	if _, err := env.service.VerifyCode("nobody@example.com", "123456"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyCode(t *testing.T) {
	env := setupService(t)

	result, _ := env.service.RequestLogin("alice@example.com")

	pair, err := env.service.VerifyCode("ALICE@example.com", result.Code)
	if err != nil {
		t.Fatalf("verify code: %v", err)
	}
	if pair.User.Email != "alice@example.com" {
		t.Errorf("user email = %q", pair.User.Email)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	env := setupService(t)

	result, _ := env.service.RequestLogin("alice@example.com")
	pair, err := env.service.VerifyCode("alice@example.com", result.Code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	rotated, err := env.service.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("expected a new refresh token after rotation")
	}

	// The rotated-out token is revoked
	if _, err := env.service.Refresh(pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale refresh err = %v, want ErrSessionNotFound", err)
	}

	// The new token works
	if _, err := env.service.Refresh(rotated.RefreshToken); err != nil {
		t.Errorf("fresh refresh err = %v, want nil", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	env := setupService(t)

	if _, err := env.service.Refresh("not.a.jwt"); !errors.Is(err, ErrInvalidRefresh) {
		t.Errorf("err = %v, want ErrInvalidRefresh", err)
	}
}

func TestRefreshExpiredSession(t *testing.T) {
	env := setupService(t)

	result, _ := env.service.RequestLogin("alice@example.com")
	pair, _ := env.service.VerifyCode("alice@example.com", result.Code)

	sess, _ := env.sessions.GetByRefreshToken(pair.RefreshToken)
	env.sessions.Delete(sess.ID)
	env.sessions.Create(sess.ID, sess.UserID, pair.RefreshToken, time.Now().UTC().Add(-time.Minute))

	if _, err := env.service.Refresh(pair.RefreshToken); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	env := setupService(t)

	result, _ := env.service.RequestLogin("alice@example.com")
	pair, _ := env.service.VerifyCode("alice@example.com", result.Code)

	if err := env.service.Logout(pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.service.Refresh(pair.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("refresh after logout err = %v, want ErrSessionNotFound", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := setupService(t)

	if err := env.service.Logout(""); err != nil {
		t.Errorf("logout with empty token: %v", err)
	}
	if err := env.service.Logout("unknown-token"); err != nil {
		t.Errorf("logout with unknown token: %v", err)
	}
}

func TestUserFromAccessToken(t *testing.T) {
	env := setupService(t)

	result, _ := env.service.RequestLogin("alice@example.com")
	pair, _ := env.service.VerifyCode("alice@example.com", result.Code)

	user := env.service.UserFromAccessToken(pair.AccessToken)
	if user == nil {
		t.Fatal("expected user for valid access token")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q", user.Email)
	}

	if env.service.UserFromAccessToken("garbage") != nil {
		t.Error("expected nil for invalid access token")
	}
	// A refresh token must not pass as an access token
	if env.service.UserFromAccessToken(pair.RefreshToken) != nil {
		t.Error("expected nil when a refresh token is presented as access token")
	}
}
