package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iped-studio/app"
	"iped-studio/config"
	"iped-studio/database"
	"iped-studio/handlers"
	"iped-studio/middleware"
	"iped-studio/session"
	"iped-studio/storage"
	"iped-studio/sweeper"
)

func main() {
	config.Load()

	logger := setupLogger()
	slog.SetDefault(logger)

	// Initialize SQLite database
	db, err := database.New(config.AppConfig.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database initialized", "path", config.AppConfig.DBPath)

	repo := database.NewRepository(db)

	// Researcher sessions live in memory
	sessionStore := session.NewStore()
	sessionStore.StartCleanupRoutine()
	logger.Info("session cleanup routine started")

	// Object storage for element images. Optional in development; the
	// upload endpoint reports it when missing.
	var store storage.Storage
	if config.AppConfig.MinIO.Endpoint != "" {
		store, err = storage.NewMinIO(config.AppConfig.MinIO)
		if err != nil {
			logger.Error("failed to connect to object storage", "error", err)
			os.Exit(1)
		}
		logger.Info("object storage connected",
			"endpoint", config.AppConfig.MinIO.Endpoint,
			"bucket", config.AppConfig.MinIO.Bucket,
		)
	} else {
		logger.Warn("MINIO_ENDPOINT not set, element image uploads disabled")
	}

	application := app.New(repo, sessionStore, store, logger, config.AppConfig.JWTSecret)

	// Background sweeper abandons idle respondent sessions
	worker := sweeper.NewWorker(repo, logger, 30*time.Minute)
	worker.Start()

	// Prometheus request metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	srv := fiber.New(fiber.Config{
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Second * 30,
		IdleTimeout:           time.Second * 30,
		BodyLimit:             int(config.AppConfig.MaxUploadMB+1) * 1024 * 1024,
		DisableStartupMessage: config.AppConfig.Env == "production",
		ErrorHandler:          customErrorHandler(logger),
		ReadBufferSize:        8192,
	})

	srv.Use(
		recover.New(),
		middleware.StructuredLogger(logger),
		middleware.Security(),
		metrics.Handler(),
		cors.New(cors.Config{
			AllowOrigins:     config.GetEnv("CORS_ORIGINS", "*"),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: false,
			MaxAge:           86400,
		}),
		limiter.New(limiter.Config{
			Max:        200,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded",
				})
			},
		}),
	)

	srv.Static("/static", "./static", fiber.Static{Compress: true, MaxAge: 86400})

	srv.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv.Post("/api/auth/register", handlers.Register(application))
	srv.Post("/api/auth/login", handlers.Login(application))
	srv.Post("/api/auth/logout", handlers.Logout(application))
	srv.Get("/api/auth/me", handlers.Me(application))

	// Anonymous respondent flow, keyed by share token
	s := srv.Group("/s/:token")
	s.Get("/", handlers.Welcome(application))
	s.Post("/start", handlers.StartParticipation(application))
	s.Post("/personal-info", handlers.SubmitPersonalInfo(application))
	s.Post("/classification", handlers.SubmitClassification(application))
	s.Get("/tasks/:index", handlers.GetTask(application))
	s.Post("/tasks/:index/start", handlers.StartTask(application))
	s.Post("/tasks/:index/complete", handlers.CompleteTask(application))
	s.Get("/completed", handlers.Completed(application))
	s.Post("/abandon", handlers.Abandon(application))
	s.Post("/tracking", handlers.TrackInteraction(application))

	// Researcher API, session cookie auth
	api := srv.Group("/api", middleware.AuthRequired(sessionStore), limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("userID").(string); ok {
				return "user:" + userID
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded for your account",
			})
		},
	}))
	api.Post("/auth/token", handlers.APIToken(application))

	api.Get("/studies/draft", handlers.GetDraft(application))
	api.Get("/studies/draft/steps/:step", handlers.GetStep(application))
	api.Post("/studies/draft/steps/:step", handlers.SaveStep(application))
	api.Post("/studies/draft/elements/:index/image", handlers.UploadElementImage(application))
	api.Post("/studies/draft/reset", handlers.ResetDraft(application))

	api.Get("/studies", handlers.ListStudies(application))
	api.Get("/studies/:id", handlers.GetStudy(application))
	api.Put("/studies/:id/status", handlers.UpdateStudyStatus(application))
	api.Delete("/studies/:id", handlers.DeleteStudy(application))
	api.Get("/studies/:id/responses", handlers.GetStudyResponses(application))
	api.Get("/studies/:id/export", handlers.ExportStudyCSV(application))

	// Versioned export API, Bearer token auth
	v1 := srv.Group("/api/v1", middleware.TokenAuth(config.AppConfig.JWTSecret))
	v1.Get("/studies/:id/export", handlers.ExportStudyCSV(application))

	logger.Info("starting server", "port", config.AppConfig.Port, "env", config.AppConfig.Env)

	go func() {
		if err := srv.Listen(":" + config.AppConfig.Port); err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server gracefully")

	worker.Stop()
	sessionStore.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func setupLogger() *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     getLogLevel(),
		AddSource: config.AppConfig.Env == "development",
	}

	if config.AppConfig.Env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func getLogLevel() slog.Level {
	level := config.GetEnv("LOG_LEVEL", "info")
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func customErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		requestID := ""
		if id, ok := c.Locals("requestID").(string); ok {
			requestID = id
		}

		logger.Error("request failed",
			"request_id", requestID,
			"method", c.Method(),
			"path", c.Path(),
			"status", code,
			"error", err,
		)

		return c.Status(code).JSON(fiber.Map{
			"error":      message,
			"request_id": requestID,
		})
	}
}
