package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowhub-io/flowhub-authz/internal/app"
	"github.com/flowhub-io/flowhub-authz/internal/assignment"
	"github.com/flowhub-io/flowhub-authz/internal/audit"
	"github.com/flowhub-io/flowhub-authz/internal/authz"
	"github.com/flowhub-io/flowhub-authz/internal/catalog"
	"github.com/flowhub-io/flowhub-authz/internal/directory"
	"github.com/flowhub-io/flowhub-authz/internal/observability"
	"github.com/flowhub-io/flowhub-authz/internal/platform/cache"
	"github.com/flowhub-io/flowhub-authz/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := catalog.Seed(ctx, pool); err != nil {
		logger.Error("seed catalog", slog.Any("error", err))
		os.Exit(1)
	}
	cat, err := catalog.Load(ctx, pool)
	if err != nil {
		logger.Error("load catalog", slog.Any("error", err))
		os.Exit(1)
	}

	var decisionCache *authz.DecisionCache
	if cfg.DecisionCacheTTL > 0 {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, decision cache disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			decisionCache = authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL)
		}
	}

	metrics := observability.NewMetrics()
	authzMetrics := authz.NewMetrics(metrics.Registerer())

	dir := directory.NewRepository(pool)
	recorder := audit.NewRecorder(pool)

	assignmentRepo := assignment.NewRepository(pool)
	assignmentService := assignment.NewService(assignmentRepo, cat, dir, recorder, decisionCache, logger)
	assignmentHandler := assignment.NewHandler(logger, assignmentService)

	authzStore := authz.NewPGStore(pool)
	authzService := authz.NewService(authzStore, cat, dir, dir, decisionCache, authzMetrics, logger)
	checkHandler := authz.NewHandler(logger, authzService)

	auditService := audit.NewService(audit.NewPGRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService)

	catalogHandler := catalog.NewHandler(logger, cat)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		CatalogHandler:    catalogHandler,
		AssignmentHandler: assignmentHandler,
		CheckHandler:      checkHandler,
		AuditHandler:      auditHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
