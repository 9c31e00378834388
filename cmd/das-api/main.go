package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/das-api/api/swagger"
	"github.com/noah-isme/das-api/internal/handler"
	"github.com/noah-isme/das-api/internal/repository"
	"github.com/noah-isme/das-api/internal/service"
	"github.com/noah-isme/das-api/pkg/cache"
	"github.com/noah-isme/das-api/pkg/config"
	"github.com/noah-isme/das-api/pkg/database"
	"github.com/noah-isme/das-api/pkg/logger"
)

// @title DAS API
// @version 1.0.0
// @description Site routing and approval workflow
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(db.DB().DB); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
	}
	db.Start(ctx)

	cacheRepo := newCacheRepository(ctx, cfg, logr)

	validate := validator.New()
	metrics := service.NewMetricsService()
	auth := service.NewAuthService(cfg.JWT)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheTTL > 0)

	conn := db.DB()
	tx := repository.NewTxManager(conn)
	sites := repository.NewSiteRecordRepository(conn)
	actions := repository.NewActionRepository(conn)
	approvals := repository.NewApprovalRepository(conn)
	audit := repository.NewAuditRepository(conn)
	directory := repository.NewDirectoryRepository(conn)

	siteSvc := service.NewSiteService(sites, tx, audit, cacheSvc, validate, metrics, logr)
	actionSvc := service.NewActionService(sites, actions, directory, tx, audit, cacheSvc, validate, metrics, logr, service.RoutingConfig{
		ForkRetries: cfg.Routing.ForkRetries,
		Suffix:      service.RandomSuffix(cfg.Routing.SuffixBytes),
	})
	approvalSvc := service.NewApprovalService(sites, actions, approvals, directory, tx, audit, cacheSvc, validate, metrics, logr)
	reportSvc := service.NewReportService(sites, actions, approvals, cacheSvc, service.NewExportService(), metrics, logr, cfg.Reports.LocalRemoteHeaders)

	router := handler.NewRouter(handler.RouterDeps{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableSwagger:  cfg.Swagger.Enabled,
		Auth:           auth,
		Sites:          siteSvc,
		Reports:        reportSvc,
		Actions:        actionSvc,
		Approvals:      approvalSvc,
		Audit:          audit,
		Metrics:        metrics,
		DB:             db,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) service.CacheRepository {
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis, logr)
		if err == nil {
			return repository.NewCacheRepository(client, logr)
		}
		logr.Warn("redis unavailable, using in-memory report cache", zap.Error(err))
	}
	return repository.NewMemoryCacheRepository(cfg.Reports.CacheTTL, 2*cfg.Reports.CacheTTL)
}
