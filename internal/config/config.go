package config

import (
	"os"
	"strconv"
)

// S3 holds credentials for S3-compatible backup storage.
type S3 struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Backup holds backup scheduling configuration.
type Backup struct {
	S3            S3
	Passphrase    string
	IntervalHours int
	RetentionDays int
}

// Config is the immutable process configuration, loaded once from the
// environment and passed down by constructor injection.
type Config struct {
	Port          string
	DBPath        string
	AppURL        string
	JWTSecret     string
	CookieDomain  string
	SecureCookies bool
	ResendAPIKey  string
	FromEmail     string
	LogLevel      string
	Backup        Backup
}

// Load reads configuration from FILAMENTORY_* environment variables,
// applying defaults suitable for local development.
func Load() Config {
	return Config{
		Port:          getenv("FILAMENTORY_PORT", "8080"),
		DBPath:        getenv("FILAMENTORY_DB_PATH", "filamentory.db"),
		AppURL:        getenv("FILAMENTORY_APP_URL", "http://localhost:8080"),
		JWTSecret:     getenv("FILAMENTORY_JWT_SECRET", ""),
		CookieDomain:  getenv("FILAMENTORY_COOKIE_DOMAIN", ""),
		SecureCookies: getenv("FILAMENTORY_ENV", "development") == "production",
		ResendAPIKey:  getenv("FILAMENTORY_RESEND_API_KEY", ""),
		FromEmail:     getenv("FILAMENTORY_FROM_EMAIL", "noreply@filamentory.com"),
		LogLevel:      getenv("FILAMENTORY_LOG_LEVEL", "info"),
		Backup: Backup{
			S3: S3{
				Endpoint:  getenv("FILAMENTORY_S3_ENDPOINT", ""),
				Bucket:    getenv("FILAMENTORY_S3_BUCKET", ""),
				Region:    getenv("FILAMENTORY_S3_REGION", "auto"),
				AccessKey: getenv("FILAMENTORY_S3_ACCESS_KEY", ""),
				SecretKey: getenv("FILAMENTORY_S3_SECRET_KEY", ""),
			},
			Passphrase:    getenv("FILAMENTORY_BACKUP_PASSPHRASE", ""),
			IntervalHours: getenvInt("FILAMENTORY_BACKUP_INTERVAL_HOURS", 24),
			RetentionDays: getenvInt("FILAMENTORY_BACKUP_RETENTION_DAYS", 30),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
