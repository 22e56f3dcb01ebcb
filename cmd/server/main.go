package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/auth"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/database"
	"github.com/stemsi/enrollment-backend/internal/handler"
	"github.com/stemsi/enrollment-backend/internal/logger"
	"github.com/stemsi/enrollment-backend/internal/middleware"
	"github.com/stemsi/enrollment-backend/internal/notify"
	"github.com/stemsi/enrollment-backend/internal/router"
	"github.com/stemsi/enrollment-backend/internal/service"
	"github.com/stemsi/enrollment-backend/internal/validator"
	"github.com/stemsi/enrollment-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	loc, _ := cfg.Location() // validated by Load

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("time_zone", loc.String()).
		Msg("Starting Enrollment Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Store ──────────────────────────────────────────────
	backend, err := database.OpenBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	controller := admission.NewController(backend.Students, backend.Courses, backend.Registrations,
		admission.WithLocation(loc),
		admission.WithMaxAttempts(cfg.CommitAttempts),
		admission.WithLogger(log),
	)
	notifier := notify.NewNotifier(rdb, log)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)

	courseService := service.NewCourseService(backend.Courses, backend.Registrations, controller)
	studentService := service.NewStudentService(backend.Students)
	registrationService := service.NewRegistrationService(controller, backend.Courses, backend.Registrations, notifier, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Course:       handler.NewCourseHandler(courseService, log),
		Student:      handler.NewStudentHandler(studentService, log),
		Registration: handler.NewRegistrationHandler(registrationService, log),
		WS:           handler.NewWSHandler(courseService, notifier, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"store": backend,
			"redis": handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	eventWorker := worker.NewEventWorker(backend.Events, rdb, log)
	workerDone := make(chan struct{})
	go func() {
		eventWorker.Start(workerCtx)
		close(workerDone)
	}()

	retention := worker.NewRetentionJob(backend.Events, cfg.EventRetention, cfg.EventRetentionSchedule, loc, log)
	retentionDone, err := retention.Start(workerCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule event retention")
	}

	registerLimiter := middleware.NewRateLimiter(cfg.RegisterRatePerMinute, cfg.RegisterRateBurst)
	go registerLimiter.Run(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(tokens, registerLimiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the event queue to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Event worker did not drain in time")
	}
	<-retentionDone

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
