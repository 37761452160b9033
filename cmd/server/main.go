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

	"github.com/ema-residences/service-reservation/internal/application"
	"github.com/ema-residences/service-reservation/internal/config"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	reservationEvents "github.com/ema-residences/service-reservation/internal/events"
	"github.com/ema-residences/service-reservation/internal/handler"
	"github.com/ema-residences/service-reservation/internal/notify"
	"github.com/ema-residences/service-reservation/internal/platform/auth"
	"github.com/ema-residences/service-reservation/internal/platform/database"
	"github.com/ema-residences/service-reservation/internal/platform/health"
	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	"github.com/ema-residences/service-reservation/internal/platform/logger"
	"github.com/ema-residences/service-reservation/internal/platform/middleware"
	"github.com/ema-residences/service-reservation/internal/platform/redisx"
	"github.com/ema-residences/service-reservation/internal/repository"
	"github.com/ema-residences/service-reservation/internal/scheduler"
	"github.com/ema-residences/service-reservation/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "service-reservation"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// The exclusion constraint needs SQL migrations, so they run in every environment.
	if err := database.RunMigrations(cfg.DB.DatabaseURL(), migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessDuration, cfg.JWT.RefreshDuration)

	// Initialize Redis (idempotency keys and consumer dedup)
	rdb := redisx.New(redisx.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	reservationRepo := repository.NewGormReservationRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	listingDirectory := repository.NewGormListingDirectory(db)
	userDirectory := repository.NewGormUserDirectory(db)

	// Initialize application services
	reservationService := application.NewReservationService(
		reservationRepo,
		listingDirectory,
		reservationDomain.NewNightlyPricingStrategy(),
		kafkaProducer,
		log,
	).
		WithTopic(cfg.Kafka.Topic).
		WithIdempotency(repository.NewRedisIdempotencyStore(rdb))

	notificationService := application.NewNotificationService(notificationRepo, log)

	catalogue, err := notify.DefaultCatalogue()
	if err != nil {
		log.Fatal("failed to load notification templates", zap.Error(err))
	}
	var mailer application.Mailer
	if cfg.SendGrid.APIKey != "" {
		mailer = notify.NewSendGridMailer(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, log)
	} else {
		log.Warn("SendGrid API key not set, notification emails disabled")
	}
	dispatchService := application.NewDispatchService(notificationRepo, listingDirectory, userDirectory, catalogue, mailer, log)

	// Initialize and start the notification consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.Kafka.GroupPrefix + "reservation-notifications"
	eventConsumer := reservationEvents.NewReservationEventConsumer(
		cfg.Kafka.Brokers,
		groupID,
		cfg.Kafka.Topic,
		dispatchService,
		repository.NewRedisDeduplicator(rdb),
		log,
	)
	defer func() { _ = eventConsumer.Close() }()

	go func() {
		log.Info("starting reservation event consumer", zap.String("group", groupID))
		if err := eventConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("reservation event consumer error", zap.Error(err))
		}
	}()

	// Background jobs
	jobs, err := scheduler.New(scheduler.Config{
		StayReminders:  cfg.Scheduler.StayReminders,
		ReminderWindow: cfg.Scheduler.ReminderWindow,
	}, reservationService, log)
	if err != nil {
		log.Fatal("failed to create scheduler", zap.Error(err))
	}
	jobs.Start()

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.RegisterValidators()
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins...))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName).
		AddCheck("redis", health.PingFunc(func(ctx context.Context) error { return redisx.Ping(ctx, rdb) }))
	healthHandler.RegisterRoutes(router)

	// Register routes
	handler.NewReservationHandler(reservationService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewNotificationHandler(notificationService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminReservationHandler(reservationService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop background work before the server drains
	cancel()
	jobs.Stop()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
