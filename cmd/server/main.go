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

	"github.com/HammerMeetNail/plantcare/internal/config"
	"github.com/HammerMeetNail/plantcare/internal/database"
	"github.com/HammerMeetNail/plantcare/internal/handlers"
	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/middleware"
	"github.com/HammerMeetNail/plantcare/internal/scheduler"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

const tickLockKey = "lock:reminders:tick"

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting plantcare server...")
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(startupCtx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsDir)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	if version, dirty, err := migrator.Version(); err == nil {
		logger.Info("Migrations completed", map[string]interface{}{"version": version, "dirty": dirty})
	}
	_ = migrator.Close()

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(startupCtx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	emailService := services.NewEmailService(&cfg.Email)
	notifier := services.NewEmailReminderNotifier(emailService, cfg.Email.BaseURL)
	reminderService := services.NewReminderService(dbAdapter, notifier)
	reminderService.SetNotifyTimeout(cfg.Reminders.NotifyTimeout)
	userService := services.NewUserService(dbAdapter)

	verifier, err := services.NewOIDCVerifier(startupCtx, cfg.Auth.Issuer(), cfg.Auth.Audience())
	if err != nil {
		return fmt.Errorf("initializing token verifier: %w", err)
	}

	runner := scheduler.NewRunner(reminderService, scheduler.Options{
		Interval:   cfg.Reminders.TickInterval,
		RunOnStart: cfg.Reminders.RunOnStart,
		Lock:       services.NewRedisTickLock(redisAdapter, tickLockKey, cfg.Reminders.LockTTL),
	})
	if err := runner.Start(context.Background()); err != nil {
		return fmt.Errorf("starting reminder scheduler: %w", err)
	}

	if cfg.Reminders.CronSecret == "" {
		logger.Warn("CRON_SECRET is not set; the cron trigger will reject every request")
	}

	handler := newRouter(routes{
		health:     handlers.NewHealthHandler(db, redisDB),
		reminders:  handlers.NewReminderHandler(reminderService),
		cron:       handlers.NewCronHandler(runner),
		auth:       middleware.NewAuthMiddleware(verifier, userService),
		cronSecret: cfg.Reminders.CronSecret,
		cronLimit:  middleware.NewRateLimiter(redisAdapter, cfg.Reminders.CronRateLimit, time.Minute, "ratelimit:cron:", middleware.GetClientIP, true),
	})
	handler = middleware.NewRequestLogger(logger).Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Reminders.NotifyTimeout + time.Minute,
		// The cron trigger lifts its own write deadline; see handlers.CronHandler.
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := runner.Stop(ctx); err != nil {
			logger.Error("Reminder scheduler did not stop cleanly", map[string]interface{}{"error": err.Error()})
		}

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{"error": err.Error()})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

type routes struct {
	health     *handlers.HealthHandler
	reminders  *handlers.ReminderHandler
	cron       *handlers.CronHandler
	auth       *middleware.AuthMiddleware
	cronSecret string
	cronLimit  *middleware.RateLimiter
}

func newRouter(rt routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.health.Health)
	mux.HandleFunc("GET /ready", rt.health.Ready)
	mux.HandleFunc("GET /live", rt.health.Live)

	requireUser := rt.auth.RequireUser
	mux.Handle("GET /api/reminders", requireUser(http.HandlerFunc(rt.reminders.List)))
	mux.Handle("POST /api/reminders", requireUser(http.HandlerFunc(rt.reminders.Create)))
	mux.Handle("GET /api/reminders/{id}", requireUser(http.HandlerFunc(rt.reminders.Get)))
	mux.Handle("PUT /api/reminders/{id}", requireUser(http.HandlerFunc(rt.reminders.Update)))
	mux.Handle("DELETE /api/reminders/{id}", requireUser(http.HandlerFunc(rt.reminders.Delete)))
	mux.Handle("POST /api/reminders/{id}/complete", requireUser(http.HandlerFunc(rt.reminders.Complete)))
	mux.Handle("GET /api/reminders/{id}/card.png", requireUser(http.HandlerFunc(rt.reminders.CareCard)))
	mux.Handle("GET /api/plants/{id}/reminders", requireUser(http.HandlerFunc(rt.reminders.ListForPlant)))

	var cron http.Handler = http.HandlerFunc(rt.cron.Reminders)
	cron = middleware.RequireCronSecret(rt.cronSecret)(cron)
	if rt.cronLimit != nil {
		cron = rt.cronLimit.Middleware(cron)
	}
	mux.Handle("GET /api/cron/reminders", cron)
	mux.Handle("POST /api/cron/reminders", cron)

	return mux
}
