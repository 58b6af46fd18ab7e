package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultry/vaultry/internal/app"
	"github.com/vaultry/vaultry/internal/auth"
	"github.com/vaultry/vaultry/internal/groups"
	"github.com/vaultry/vaultry/internal/platform/cache"
	"github.com/vaultry/vaultry/internal/platform/db"
	"github.com/vaultry/vaultry/internal/rbac"
	"github.com/vaultry/vaultry/internal/roles"
	"github.com/vaultry/vaultry/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.NewMiddleware(authService, logger)

	groupsRepo := groups.NewRepository(pool)

	rbacStore := rbac.NewRepository(pool)
	rbacCache := rbac.NewDecisionCache(redisClient, cfg.RbacCacheTTL)
	catalog := rbac.DefaultCatalog()
	registry := rbac.NewRegistry(rbacStore, catalog)
	evaluator := rbac.NewEvaluator(rbacStore, catalog, groupsRepo, rbacCache, logger)
	reactor := rbac.NewReactor(rbacStore, rbacCache, logger)
	rbacService := rbac.NewService(rbacStore, registry, rbacCache, logger)
	rbacMiddleware := rbac.NewMiddleware(evaluator, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, reactor, logger)
	rolesHandler := roles.NewHandler(logger, rolesService)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		RolesHandler:   rolesHandler,
		RbacHandler:    rbacHandler,
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
