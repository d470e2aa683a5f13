package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filamentory/filamentory/internal/config"
	"github.com/filamentory/filamentory/internal/database"
	"github.com/filamentory/filamentory/internal/email"
	"github.com/filamentory/filamentory/internal/logging"
	"github.com/filamentory/filamentory/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		logger.Error("FILAMENTORY_JWT_SECRET must be set")
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.ResendAPIKey, cfg.FromEmail, logger)

	srv := server.New(db, cfg, emailClient, logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if srv.BackupManager().Enabled() {
		srv.BackupManager().Start(rootCtx)
	}

	// Periodic cleanup of expired tokens, sessions, and rate limit windows.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if n, err := srv.MagicTokenStore().DeleteExpired(); err != nil {
					logger.Warn("magic token cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("deleted expired magic tokens", "count", n)
				}
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Warn("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("deleted expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Filamentory running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()

	fmt.Println("\nShutting down...")
	srv.BackupManager().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
