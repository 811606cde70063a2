// Package main is the entry point for the copilot API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/brijeshdobariya07/insightOS/internal/config"
	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/internal/handler"
	"github.com/brijeshdobariya07/insightOS/internal/llm"
	"github.com/brijeshdobariya07/insightOS/internal/middleware"
	natsclient "github.com/brijeshdobariya07/insightOS/internal/nats"
	"github.com/brijeshdobariya07/insightOS/internal/service"
	"github.com/brijeshdobariya07/insightOS/pkg/logger"
	"github.com/brijeshdobariya07/insightOS/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting copilot API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "insightos-copilot", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS for the audit stream if configured
	var natsConn *natsclient.Client
	var audit *natsclient.AuditPublisher
	if cfg.NATSURL != "" {
		natsConn, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, audit stream disabled", zap.Error(err))
		} else {
			defer natsConn.Close()
			audit = natsclient.NewAuditPublisher(natsConn)
			if err := audit.EnsureStream(ctx); err != nil {
				log.Warn("failed to ensure audit stream", zap.Error(err))
				audit = nil
			}
		}
	}

	// Initialize LLM client. A missing model or credential leaves the client
	// nil and every turn degrades to the safe fallback.
	var llmClient llm.Client
	if cfg.CopilotConfigured() {
		llmClient, err = llm.NewClient(llm.Provider(cfg.Provider), cfg.APIKey())
		if err != nil {
			log.Warn("failed to create LLM client, copilot degraded to fallback", zap.Error(err))
		}
	} else {
		log.Warn("copilot model or credential not configured, serving fallback only")
	}

	// Host controls consumed by the action dispatcher. The filter control
	// owns the whitelist; the dispatcher only checks payload shape.
	statusFilters := map[string]bool{"all": true, "healthy": true, "warning": true, "critical": true}
	controls := copilot.HostControls{
		SetStatusFilter: func(value string) {
			if !statusFilters[value] {
				log.Warn("rejected filter value", zap.String("value", value))
				return
			}
			log.Info("status filter applied", zap.String("value", value))
		},
		HighlightMetric: func(key string) {
			log.Info("metric highlighted", zap.String("metric", key))
		},
		ExportReport: func() {
			log.Info("report export requested")
		},
	}

	// Initialize services
	sessionSvc := service.NewSessionService(log)
	copilotSvc := service.NewCopilotService(cfg.Model, cfg.MaxTokens, llmClient, sessionSvc, controls, audit, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(copilotSvc, natsConn)
	copilotHandler := handler.NewCopilotHandler(copilotSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/copilot", func(r chi.Router) {
			r.Post("/query", copilotHandler.Query)
			r.Post("/actions", copilotHandler.Actions)
			r.Get("/messages", copilotHandler.Messages)
			r.Get("/provider", copilotHandler.Provider)
			r.Post("/reset", copilotHandler.Reset)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
