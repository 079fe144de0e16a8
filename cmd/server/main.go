package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"

	"vulnwatch/application"
	"vulnwatch/database"
	"vulnwatch/infrastructure/config"
	"vulnwatch/infrastructure/repositories"
	"vulnwatch/interfaces/web/handlers"
	"vulnwatch/logging"
	"vulnwatch/platform/events"
)

func main() {
	loadEnvironment()
	cfg := config.LoadAppConfigFromEnv()

	logger := initializeLogging(cfg)

	db := initializeDatabase(cfg, logger)
	defer db.Close()

	deps := buildDependencies(cfg, db, logger)

	router := setupRoutes(deps, cfg)
	startServer(router, cfg.HTTPAddr, logger, deps)
}

// Dependencies holds the wired application layers.
type Dependencies struct {
	DB           *database.Database
	Logger       *logging.Logger
	Broker       *events.TopicBroker
	Orchestrator *application.AuditOrchestrator
	Analytics    *application.AnalyticsService

	AuditHandlers     *handlers.AuditHandlers
	AnalyticsHandlers *handlers.AnalyticsHandlers
	SSEGateway        *handlers.SSEGateway
}

func loadEnvironment() {
	if err := godotenv.Load(); err != nil {
		println("No .env file found, using environment variables")
	} else {
		println("Loaded configuration from .env file")
	}
}

func initializeLogging(cfg *config.AppConfig) *logging.Logger {
	logger := logging.NewLogger(cfg.Logging)
	logging.SetDefault(logger)

	logger.Info("Application starting",
		"version", "1.0.0",
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format,
		"db_path", cfg.Database.Path,
	)

	return logger
}

func initializeDatabase(cfg *config.AppConfig, logger *logging.Logger) *database.Database {
	db, err := database.New(*cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	return db
}

// buildDependencies wires repositories, the broadcaster and the services.
func buildDependencies(cfg *config.AppConfig, db *database.Database, logger *logging.Logger) *Dependencies {
	auditRepo := repositories.NewSqliteAuditRepository(db)

	broker := events.NewTopicBroker(cfg.SubscriberBuffer)
	orchestrator := application.NewAuditOrchestrator(auditRepo, broker)

	// The broker falls back to the orchestrator for snapshots of topics it no
	// longer retains (late re-subscribes after completion).
	broker.SetSnapshotSource(orchestrator)

	analyticsService := application.NewAnalyticsService(auditRepo)

	return &Dependencies{
		DB:           db,
		Logger:       logger,
		Broker:       broker,
		Orchestrator: orchestrator,
		Analytics:    analyticsService,

		AuditHandlers:     handlers.NewAuditHandlers(orchestrator),
		AnalyticsHandlers: handlers.NewAnalyticsHandlers(analyticsService),
		SSEGateway:        handlers.NewSSEGateway(broker),
	}
}

func setupRoutes(deps *Dependencies, cfg *config.AppConfig) *chi.Mux {
	r := chi.NewRouter()

	setupHTTPLogging(r, cfg)
	r.Use(middleware.Recoverer)

	setupSystemRoutes(r, deps)
	setupAuditRoutes(r, deps)
	setupAnalyticsRoutes(r, deps)

	return r
}

func setupHTTPLogging(r *chi.Mux, cfg *config.AppConfig) {
	httpLogger := httplog.NewLogger("vulnwatch", httplog.Options{
		LogLevel: httplog.LevelByName(cfg.Logging.Level),
		JSON:     cfg.Logging.Format == "json",
		Concise:  true,
	})
	r.Use(httplog.RequestLogger(httpLogger))
}

func setupSystemRoutes(r *chi.Mux, deps *Dependencies) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		stats, err := deps.DB.Health()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		response := map[string]interface{}{
			"status":   "ok",
			"database": stats,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
}

func setupAuditRoutes(r *chi.Mux, deps *Dependencies) {
	// Producer surface
	r.Post("/api/audits", deps.AuditHandlers.CreateAudit)
	r.Post("/api/audits/{auditID}/advance", deps.AuditHandlers.AdvanceAudit)
	r.Post("/api/audits/{auditID}/fail", deps.AuditHandlers.FailAudit)
	r.Post("/api/audits/{auditID}/findings", deps.AuditHandlers.AttachFindings)

	// Observer surface
	r.Get("/api/audits/{auditID}", deps.AuditHandlers.GetAudit)
	r.Get("/api/audits/{auditID}/events", deps.SSEGateway.StreamAuditEvents)
}

func setupAnalyticsRoutes(r *chi.Mux, deps *Dependencies) {
	r.Get("/api/analytics/summary", deps.AnalyticsHandlers.Summary)
	r.Get("/api/analytics/export", deps.AnalyticsHandlers.Export)
}

func startServer(router *chi.Mux, addr string, logger *logging.Logger, deps *Dependencies) {
	server := &http.Server{Addr: addr, Handler: router}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sig
		logger.Info("Shutdown signal received")

		// Close subscriber channels first so SSE streams return and the HTTP
		// shutdown is not held open by long-lived connections.
		logger.Info("Closing event broker...")
		deps.Broker.Close()

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				logger.Error("Graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			os.Exit(1)
		}
		serverStopCtx()
	}()

	logger.Info("Server starting", "address", addr)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-serverCtx.Done()
	logger.Info("Server stopped")
}
