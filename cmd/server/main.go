// Package main is the entry point for the PreAid advice gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/adapter"
	"github.com/hpn/preaid-gateway/internal/advice"
	"github.com/hpn/preaid-gateway/internal/auth"
	"github.com/hpn/preaid-gateway/internal/config"
	"github.com/hpn/preaid-gateway/internal/dispatch"
	"github.com/hpn/preaid-gateway/internal/handler"
	"github.com/hpn/preaid-gateway/internal/history"
	"github.com/hpn/preaid-gateway/internal/metrics"
	"github.com/hpn/preaid-gateway/internal/security"
	"github.com/hpn/preaid-gateway/internal/ui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// =========================================================================
	// 1. Setup structured logger (JSON format, secrets redacted)
	// =========================================================================
	level := new(slog.LevelVar)
	logger := setupLogger(os.Stdout, "json", level)

	ui.PrintBanner(version)
	logger.Info("starting preaid gateway", slog.String("version", version))

	// =========================================================================
	// 2. Load configuration (Singleton)
	// =========================================================================
	cfg, err := config.GetConfig()
	if err != nil {
		if problems := config.ValidationProblems(err); problems != nil {
			for _, p := range problems {
				logger.Error("invalid configuration", slog.String("problem", p))
			}
		} else {
			logger.Error("failed to load configuration", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}

	parsed, _ := config.ParseLogLevel(cfg.Logging.Level)
	level.Set(parsed)
	if cfg.Logging.Format == "text" {
		logger = setupLogger(os.Stdout, "text", level)
	}
	if config.WatchLogLevel(level, logger) {
		logger.Debug("watching config file for log level changes")
		ui.PrintInfo("Log level reloads when the config file changes")
	}

	logger.Info("configuration loaded",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.Int("providers", len(cfg.Providers)),
		slog.Bool("history", cfg.History.Enabled),
		slog.Bool("cache", cfg.Cache.Enabled),
	)

	// =========================================================================
	// 3. Wire dispatcher, advice service, history and metrics
	// =========================================================================
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	status := a.dispatcher.ProviderStatus()
	ui.PrintProviderTable(status)
	if names := status.ConfiguredNames(); len(names) > 0 {
		ui.PrintInfo("Fallback order: " + strings.Join(names, " → "))
	}

	// =========================================================================
	// 4. Setup Gin router with middleware
	// =========================================================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := buildRouter(a)

	// =========================================================================
	// 5. Start HTTP server with graceful shutdown
	// =========================================================================
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("address", addr))
		ui.PrintStartupInfo(cfg.Server.Host, cfg.Server.Port, a.endpoints())

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// =========================================================================
	// 6. Graceful shutdown on SIGTERM/SIGINT
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	ui.PrintShutdown()

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	stop()

	logger.Info("server stopped gracefully")
	ui.PrintGoodbye()
}

// setupLogger creates the process logger. Every record passes through the
// credential redactor.
func setupLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	if format == "text" {
		inner = slog.NewTextHandler(w, opts)
	} else {
		inner = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(security.NewRedactedHandler(inner))
	slog.SetDefault(logger)

	return logger
}

// app holds the long-lived components built from configuration.
type app struct {
	cfg        *config.Configuration
	logger     *slog.Logger
	metrics    *metrics.Collector
	dispatcher *dispatch.Dispatcher
	advice     *advice.Service
	cache      *handler.ResponseCache
	verifier   *auth.Verifier
	store      *history.SQLiteStore
	scheduler  *history.Scheduler
}

// newApp builds every component. Background work (cache sweeping, history
// pruning) stops when ctx is done.
func newApp(ctx context.Context, cfg *config.Configuration, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewCollector(metrics.DefaultNamespace, nil)
	}

	providers, err := adapter.FromDescriptors(cfg.ProviderDescriptors())
	if err != nil {
		return nil, fmt.Errorf("build provider adapters: %w", err)
	}

	a.dispatcher = dispatch.NewDispatcher(providers,
		dispatch.WithAttemptTimeout(cfg.Dispatch.AttemptTimeout()),
		dispatch.WithMaxResponseBytes(cfg.Dispatch.MaxResponseBytes),
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(a.metrics),
	)
	a.metrics.SetProvidersAvailable(a.dispatcher.ProviderStatus().AvailableCount)

	a.advice = advice.NewService(a.dispatcher,
		advice.WithMinLength(cfg.Advice.MinLength),
		advice.WithPrimaryOptions(cfg.Advice.Primary),
		advice.WithRetryOptions(cfg.Advice.Retry),
		advice.WithLogger(logger),
		advice.WithObserver(a.metrics),
	)

	if cfg.Cache.Enabled {
		a.cache = handler.NewResponseCache(
			handler.WithCacheTTL(cfg.Cache.TTL()),
			handler.WithCacheLogger(logger),
			handler.WithCacheObserver(a.metrics),
		)
		go a.cache.Run(ctx)
	}

	if cfg.History.Enabled {
		if err := a.openHistory(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) openHistory(ctx context.Context) error {
	verifier, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	a.verifier = verifier

	db, err := history.OpenSQLite(a.cfg.History.DBPath)
	if err != nil {
		return err
	}
	store, err := history.NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	a.store = store

	pruner := history.NewPruner(store, history.RetentionConfig{
		RetentionDays: a.cfg.History.RetentionDays,
		PruneSchedule: a.cfg.History.PruneSchedule,
	}, a.logger)
	if _, err := pruner.Prune(ctx); err != nil {
		a.logger.Warn("initial history prune failed", slog.String("error", err.Error()))
	}

	a.scheduler = history.NewScheduler(pruner)
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("consultation history enabled",
		slog.String("db_path", a.cfg.History.DBPath),
		slog.Int("retention_days", a.cfg.History.RetentionDays),
	)
	return nil
}

// Close releases the history database and stops the pruning schedule.
func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close history store", slog.String("error", err.Error()))
		}
	}
}

// buildRouter registers middleware and routes.
func buildRouter(a *app) *gin.Engine {
	router := gin.New()

	router.Use(handler.RecoveryMiddleware(a.logger))
	router.Use(handler.RequestIDMiddleware())
	router.Use(handler.CORSMiddleware())
	router.Use(handler.LoggingMiddleware(a.logger))
	if gin.Mode() == gin.DebugMode {
		router.Use(handler.ConsoleMiddleware())
	}

	opts := []handler.AdviceHandlerOption{
		handler.WithRequestTimeout(time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second),
		handler.WithLogger(a.logger),
	}
	if a.store != nil {
		opts = append(opts, handler.WithHistoryStore(a.store))
	}
	adviceHandler := handler.NewAdviceHandler(a.advice, a.dispatcher, opts...)

	var chatChain []gin.HandlerFunc
	if a.verifier != nil {
		chatChain = append(chatChain, handler.OptionalAuthMiddleware(a.verifier, a.logger))
	}
	if a.cache != nil {
		chatChain = append(chatChain, handler.CacheMiddleware(a.cache))
	}
	chatChain = append(chatChain, adviceHandler.HandleChat)

	api := router.Group("/api")
	api.POST("/chat", chatChain...)
	api.POST("/health-advice", chatChain...)
	api.GET("/providers", adviceHandler.HandleProviders)
	api.GET("/health", adviceHandler.HandleHealth)

	if a.store != nil {
		historyHandler := handler.NewHistoryHandler(a.store, a.cfg.History.ListLimit, a.logger)
		hist := api.Group("/history", handler.AuthMiddleware(a.verifier))
		hist.GET("", historyHandler.HandleList)
		hist.POST("", historyHandler.HandleSave)
		hist.DELETE("/:id", historyHandler.HandleDelete)
	}

	if a.metrics != nil {
		router.GET(a.cfg.Metrics.Path, gin.WrapH(a.metrics.Handler()))
	}

	return router
}

// endpoints lists the registered routes for the startup table.
func (a *app) endpoints() []ui.Endpoint {
	endpoints := []ui.Endpoint{
		{Method: http.MethodPost, Path: "/api/chat", Description: "First-aid advice"},
		{Method: http.MethodPost, Path: "/api/health-advice", Description: "First-aid advice (legacy)"},
		{Method: http.MethodGet, Path: "/api/providers", Description: "Provider availability"},
		{Method: http.MethodGet, Path: "/api/health", Description: "Health check"},
	}
	if a.store != nil {
		endpoints = append(endpoints,
			ui.Endpoint{Method: http.MethodGet, Path: "/api/history", Description: "Consultation history"},
			ui.Endpoint{Method: http.MethodPost, Path: "/api/history", Description: "Save consultation"},
			ui.Endpoint{Method: http.MethodDelete, Path: "/api/history/:id", Description: "Delete consultation"},
		)
	}
	if a.metrics != nil {
		endpoints = append(endpoints, ui.Endpoint{Method: http.MethodGet, Path: a.cfg.Metrics.Path, Description: "Prometheus metrics"})
	}
	return endpoints
}
