package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/filamentory/filamentory/internal/auth"
	"github.com/filamentory/filamentory/internal/backup"
	"github.com/filamentory/filamentory/internal/config"
	"github.com/filamentory/filamentory/internal/email"
	"github.com/filamentory/filamentory/internal/handler"
	"github.com/filamentory/filamentory/internal/middleware"
	"github.com/filamentory/filamentory/internal/store"
	"github.com/filamentory/filamentory/internal/token"
	ws "github.com/filamentory/filamentory/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authService   *auth.Service
	authH         *handler.AuthHandler
	filamentH     *handler.FilamentHandler
	noteH         *handler.NoteHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	magicTokens   *store.MagicTokenStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, cfg config.Config, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	magicTokenStore := store.NewMagicTokenStore(db)
	sessionStore := store.NewSessionStore(db)
	filamentStore := store.NewFilamentStore(db)
	noteStore := store.NewNoteStore(db)
	backupStore := store.NewBackupStore(db)

	codec := token.NewCodec(cfg.JWTSecret)
	authService := auth.NewService(
		userStore, magicTokenStore, sessionStore, codec,
		emailClient, cfg.AppURL,
		logger.With("component", "auth"),
	)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3.Endpoint,
			Bucket:    cfg.Backup.S3.Bucket,
			Region:    cfg.Backup.S3.Region,
			AccessKey: cfg.Backup.S3.AccessKey,
			SecretKey: cfg.Backup.S3.SecretKey,
		},
		DBPath:        cfg.DBPath,
		Passphrase:    cfg.Backup.Passphrase,
		IntervalHours: cfg.Backup.IntervalHours,
		RetentionDays: cfg.Backup.RetentionDays,
	}, db, backupStore, logger.With("component", "backup"))

	rateLimiter := middleware.NewRateLimiter()
	cookies := handler.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.SecureCookies}

	return &Server{
		db:            db,
		hub:           hub,
		authService:   authService,
		authH:         handler.NewAuthHandler(authService, rateLimiter, cookies, logger.With("component", "auth_handler")),
		filamentH:     handler.NewFilamentHandler(filamentStore, hub, logger.With("component", "filament")),
		noteH:         handler.NewNoteHandler(noteStore, hub, logger.With("component", "note")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		magicTokens:   magicTokenStore,
		rateLimiter:   rateLimiter,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicTokenStore returns the magic token store for cleanup tasks.
func (s *Server) MagicTokenStore() *store.MagicTokenStore {
	return s.magicTokens
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/login", s.authH.Login)
	outerMux.HandleFunc("GET /api/auth/verify", s.rateLimited("verify", s.authH.Verify, 5, 15*time.Minute))
	outerMux.HandleFunc("POST /api/auth/verify-code", s.rateLimited("verify", s.authH.VerifyCode, 5, 15*time.Minute))
	outerMux.HandleFunc("POST /api/auth/refresh", s.rateLimited("refresh", s.authH.Refresh, 10, 15*time.Minute))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.authService)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimited wraps a handler with a per-IP fixed window. The name keeps
// each endpoint's budget separate: refresh traffic must not consume the
// verification quota.
func (s *Server) rateLimited(name string, h http.HandlerFunc, limit int, window time.Duration) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return name + ":" + middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, limit, window)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Filament API routes
	mux.HandleFunc("POST /api/filaments", s.filamentH.Create)
	mux.HandleFunc("GET /api/filaments", s.filamentH.List)
	mux.HandleFunc("GET /api/filaments/stats", s.filamentH.Stats)
	mux.HandleFunc("GET /api/filaments/{id}", s.filamentH.Get)
	mux.HandleFunc("PUT /api/filaments/{id}", s.filamentH.Update)
	mux.HandleFunc("DELETE /api/filaments/{id}", s.filamentH.Delete)
	mux.HandleFunc("POST /api/filaments/{id}/reduce", s.filamentH.Reduce)

	// Notes API routes
	mux.HandleFunc("POST /api/notes", s.noteH.Create)
	mux.HandleFunc("GET /api/notes", s.noteH.List)
	mux.HandleFunc("GET /api/notes/{id}", s.noteH.Get)
	mux.HandleFunc("PUT /api/notes/{id}", s.noteH.Update)
	mux.HandleFunc("DELETE /api/notes/{id}", s.noteH.Delete)

	// Backup API routes
	mux.HandleFunc("POST /api/backups/run", s.backupH.Run)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
