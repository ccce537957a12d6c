// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/api"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/bridge"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ingest"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/ledger"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/logseq"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/mcpserver"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/reconcile"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/recognizer"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/sse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// In MCP mode stdout carries the protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("capture_inbox", cfg.Capture.Inbox),
		slog.String("logseq_endpoint", cfg.Logseq.Endpoint),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the capture inbox exists.
	if err := os.MkdirAll(cfg.Capture.Inbox, 0o755); err != nil {
		return fmt.Errorf("create capture inbox: %w", err)
	}

	// Open the stroke ledger.
	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	// Outbound clients.
	recog := recognizer.New(cfg.Recognition.Endpoint, cfg.Recognition.AppKey,
		cfg.Recognition.HMACKey, cfg.Recognition.Language, 0)
	notes := logseq.New(cfg.Logseq.Endpoint, cfg.Logseq.Token, cfg.Logseq.Container, 0)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Reconciliation engine and bridge service.
	engine := reconcile.NewEngine(notes, db, logger)
	svc := bridge.New(db, recog, engine, logger, func(kind string, sum models.Summary) {
		broker.PublishPassEvent(kind, sum)
	})

	if app.mcp {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc).ServeStdio()
	}

	// Import any capture files already sitting in the inbox, then run a
	// recognition pass over the touched pages.
	importer := ingest.NewImporter(db, logger)
	if pages, ierr := importer.ImportDir(cfg.Capture.Inbox); ierr != nil {
		logger.Warn("initial inbox import failed", slog.String("error", ierr.Error()))
	} else if len(pages) > 0 {
		svc.RecognizePages(ctx, pages)
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the capture inbox and reconcile touched pages as files arrive.
	g.Go(func() error {
		return ingest.Watch(gCtx, importer, cfg.Capture.Inbox, logger, func(pages map[models.PageID]struct{}) {
			svc.RecognizePages(gCtx, pages)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
