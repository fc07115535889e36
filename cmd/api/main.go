package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tattootrack/internal/cache"
	"tattootrack/internal/calendar"
	"tattootrack/internal/config"
	"tattootrack/internal/database"
	"tattootrack/internal/logger"
	"tattootrack/internal/metrics"
	"tattootrack/internal/server"
	"tattootrack/internal/storage"
	"tattootrack/internal/tracing"
	"tattootrack/internal/validator"
)

// @title           TattooTrack API
// @version         1.0
// @description     TattooTrack manages a tattoo studio: clients, appointments and finances.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTracing, err := tracing.Init(ctx, appConfig.OTLPEndpoint, server.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warnw("tracer shutdown failed", "error", err)
		}
	}()

	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("database close failed", "error", err)
		}
	}()
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	images, err := storage.NewLocal(appConfig.UploadDir, appConfig.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to prepare upload storage: %w", err)
	}

	validator.Register()

	deps := server.Deps{
		Config:  appConfig,
		DB:      dbManager.DB(),
		Metrics: metrics.New(),
		Cache:   newMonthCache(ctx, appConfig),
		Images:  images,
	}
	if appConfig.GoogleEnabled() {
		deps.Calendar = calendar.NewGoogle(calendar.Config{
			ClientID:     appConfig.GoogleClientID,
			ClientSecret: appConfig.GoogleClientSecret,
			RedirectURL:  appConfig.GoogleRedirectURL,
			CalendarID:   appConfig.GoogleCalendarID,
			TimeZone:     appConfig.StudioTimezone,
		})
	} else {
		log.Info("Google Calendar credentials not set, calendar sync disabled")
	}

	svc := server.NewServices(deps)
	if err := svc.Categories.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed default categories: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           server.NewRouter(deps, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting TattooTrack API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newMonthCache prefers Redis and falls back to process memory when no
// address is set or the server is unreachable.
func newMonthCache(ctx context.Context, cfg *config.Config) *cache.MonthCache {
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		client, err := cache.Connect(pingCtx, cfg.RedisAddr)
		if err == nil {
			logger.Get().Infow("calendar cache using redis", "addr", cfg.RedisAddr)
			return cache.NewMonthCache(cache.NewRedis(client), cfg.CacheTTL)
		}
		logger.Get().Warnw("redis unavailable, using in-memory calendar cache", "addr", cfg.RedisAddr, "error", err)
	}
	return cache.NewMonthCache(cache.NewMemory(), cfg.CacheTTL)
}
