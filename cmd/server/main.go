package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/DukeRupert/constat/internal"
	"github.com/DukeRupert/constat/internal/email"
	"github.com/DukeRupert/constat/internal/handler"
	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/middleware"
	"github.com/DukeRupert/constat/internal/report"
	"github.com/DukeRupert/constat/internal/repository"
	"github.com/DukeRupert/constat/internal/service"
	"github.com/DukeRupert/constat/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize storage
	store, err := storage.New(ctx, cfg.StorageConfig(), logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize email
	sender, err := newSender(cfg, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}
	defer sender.Close()
	notifier := email.NewDispatcher(sender, cfg.FrontendURL, logger)

	// Initialize PDF renderer
	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("PDF renderer ready", "engine", renderer.Engine())

	// Initialize services
	reportService := service.NewReportService(repo, logger)
	attachments := service.NewAttachmentResolver(store, service.NewImagingProcessor(), logger)
	documentService := service.NewDocumentService(renderer, attachments, store, logger)
	validationService := service.NewValidationService(repo, reportService, documentService, notifier, nil, logger)
	deliveryService := service.NewDeliveryService(reportService, documentService, validationService, attachments, notifier, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	clientIPs, err := middleware.NewClientIP(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	authMw := middleware.NewAuthMiddleware(reportService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger, clientIPs)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}
	defer closeLimiter()

	// Initialize handlers
	validationHandler := handler.NewValidationHandler(validationService, logger)
	stateReportHandler := handler.NewStateReportHandler(deliveryService, validationService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("Metrics endpoint is not protected, set METRICS_USERNAME and METRICS_PASSWORD")
	}
	mux.Handle("GET /metrics", middleware.MetricsBasicAuth(cfg.MetricsUsername, cfg.MetricsPassword)(promhttp.Handler()))

	// Locally stored photos and archived PDFs
	if local, ok := store.(*storage.LocalStorage); ok {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(local.Root()))))
	}

	// Public validation routes, rate limited per client
	validationHandler.RegisterRoutes(mux, middleware.RateLimit(limiter, clientIPs, logger))

	// Author routes
	stateReportHandler.RegisterRoutes(mux, authMw.RequireAuthor)

	app := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
		middleware.NewCORS(cfg.CORSOrigins, logger),
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newSender(cfg *internal.Config, logger *slog.Logger) (email.Sender, error) {
	switch cfg.EmailProvider {
	case email.ProviderSendGrid:
		return email.NewSendGridSender(cfg.SendGridConfig(), logger), nil
	case email.ProviderLog:
		return email.NewLogSender(logger), nil
	case email.ProviderSMTP:
		return email.NewSMTPSender(cfg.SMTPConfig(), logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

func newRenderer(cfg *internal.Config, logger *slog.Logger) (report.Renderer, error) {
	if cfg.PDFEngine == internal.PDFEngineChrome {
		return report.NewChromeRenderer(cfg.ChromePath, cfg.ChromeTimeout)
	}

	var fonts *report.Fonts
	if cfg.FontsDir != "" {
		var err error
		if fonts, err = report.LoadFonts(cfg.FontsDir); err != nil {
			return nil, err
		}
	}
	return report.NewPDFRenderer(fonts, logger), nil
}

func newLimiter(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (middleware.Limiter, func(), error) {
	if cfg.RedisURL == "" {
		mem := middleware.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		logger.Info("Rate limiter ready", "backend", "memory")
		return mem, mem.Close, nil
	}

	client, err := middleware.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Rate limiter ready", "backend", "redis")
	return middleware.NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow), func() { client.Close() }, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
