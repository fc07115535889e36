package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tattootrack/internal/logger"
)

// Config holds application configuration
type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Studio
	StudioTimezone      string
	Location            *time.Location
	DepositCategoryName string
	SessionCategoryName string

	// Uploads
	UploadDir      string
	MaxUploadBytes int64

	// Google Calendar
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURL   string
	GoogleCalendarID    string
	CalendarSyncTimeout time.Duration

	// Cache
	RedisAddr string
	CacheTTL  time.Duration

	// Observability
	MetricsAPIKey string
	OTLPEndpoint  string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Get().Warn(".env file not found, using process environment")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "*"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tattootrack"),
		DBPassword: getEnv("DB_PASSWORD", "tattootrack"),
		DBName:     getEnv("DB_NAME", "tattootrack"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBPath:     getEnv("DB_PATH", "tattootrack.db"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		StudioTimezone:      getEnv("STUDIO_TIMEZONE", "America/Sao_Paulo"),
		DepositCategoryName: getEnv("DEPOSIT_CATEGORY_NAME", "Sinal/Deposito"),
		SessionCategoryName: getEnv("SESSION_CATEGORY_NAME", "Sessao de Tatuagem"),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 10<<20),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:   getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/auth/google/callback"),
		GoogleCalendarID:    getEnv("GOOGLE_CALENDAR_ID", "primary"),
		CalendarSyncTimeout: getDuration("CALENDAR_SYNC_TIMEOUT", 10*time.Second),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		CacheTTL:  getDuration("CACHE_TTL", 5*time.Minute),

		MetricsAPIKey: getEnv("METRICS_API_KEY", ""),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	// 7 days, matching the web client's session length
	config.JWTExpirationDur = getDuration("JWT_EXPIRES_IN", 168*time.Hour)

	loc, err := time.LoadLocation(config.StudioTimezone)
	if err != nil {
		logger.Get().Warnf("invalid STUDIO_TIMEZONE %q, falling back to UTC", config.StudioTimezone)
		loc = time.UTC
	}
	config.Location = loc

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			logger.Get().Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// GoogleEnabled reports whether the OAuth client credentials are present.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Get().Warnf("invalid %s value %q, falling back to %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func getInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		logger.Get().Warnf("invalid %s value %q, falling back to %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}
