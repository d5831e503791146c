package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"ms-registration/internal/auth"
	"ms-registration/internal/cache"
	"ms-registration/internal/config"
	"ms-registration/internal/database"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/events"
	eventdb "ms-registration/internal/events/db"
	"ms-registration/internal/events/event_api"
	"ms-registration/internal/jobs"
	"ms-registration/internal/logger"
	"ms-registration/internal/notify"
	"ms-registration/internal/pass"
	"ms-registration/internal/registration"
	regdb "ms-registration/internal/registration/db"
	"ms-registration/internal/registration/registration_api"
	"ms-registration/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func runMigrations(cfg config.DatabaseConfig, log *logger.Logger) error {
	runner := migrations.NewRunner(cfg.DSN, log)
	defer runner.Close()
	return runner.MigrateUp()
}

// connectRedis returns nil when Redis is disabled or unreachable; the
// service then runs without availability caching or reminder dedup.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled, caching off")
		return nil
	}
	client, err := cache.NewClient(ctx, cfg, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Continuing without Redis: %v", err))
		return nil
	}
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Registration Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, log); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Schema migration failed: %v", err))
		}
	}

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	var (
		availability registration.AvailabilityCache
		guard        jobs.ReminderGuard
	)
	if redisClient != nil {
		defer redisClient.Close()
		availability = cache.NewAvailabilityCache(redisClient, cfg.Redis.AvailabilityTTL)
		guard = cache.NewReminderGuard(redisClient, cfg.Redis.ReminderTTL)
	}

	publisher, closePublisher := notify.NewPublisher(ctx, cfg.Kafka, log)
	defer closePublisher()
	dispatcher := notify.NewDispatcher(publisher, cfg.Kafka.Topics, cfg.Notify.PublishTimeout, log)

	passes, err := pass.NewGenerator(cfg.Pass.Secret, cfg.Pass.Size)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Pass generator: %v", err))
	}
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	eventStore := eventdb.New(bunDB)
	registrationService := registration.NewService(regdb.New(bunDB, cfg.Database.TxIsolation), dispatcher, availability, log)
	eventService := events.NewService(eventStore, dispatcher, log)

	eventHandler := event_api.NewHandler(eventService, log)
	registrationHandler := registration_api.NewHandler(registrationService, passes, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(utils.RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Pass-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteError(w, http.StatusServiceUnavailable, "database unavailable", "DB_UNAVAILABLE")
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		eventHandler.PublicRoutes(r)
		registrationHandler.PublicRoutes(r)
		log.Info("ROUTER", "Public event and availability routes registered under /api")

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(issuer, log))
			registrationHandler.AttendeeRoutes(r)
			log.Info("ROUTER", "Attendee registration routes registered under /api")

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(cfg.Auth.AdminRole, log))
				eventHandler.AdminRoutes(r)
				registrationHandler.AdminRoutes(r)
			})
			log.Info("ROUTER", "Admin routes registered under /api/admin")
		})
	})

	jobCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	if cfg.Jobs.Enabled {
		runner := jobs.NewRunner(eventStore, dispatcher, guard, cfg.Jobs, log)
		go runner.Start(jobCtx)
		log.Info("JOBS", "Scheduled jobs started")
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Registration Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopJobs()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	if err := dispatcher.Close(ctxShutdown); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Pending notifications dropped: %v", err))
	}
	log.Info("HTTP", "✅ Registration Service shutdown complete")
}
