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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/drivehq/selection-api/api/swagger"
	"github.com/drivehq/selection-api/internal/catalog"
	"github.com/drivehq/selection-api/internal/handler"
	"github.com/drivehq/selection-api/internal/middleware"
	"github.com/drivehq/selection-api/internal/repository"
	"github.com/drivehq/selection-api/internal/service"
	"github.com/drivehq/selection-api/pkg/cache"
	"github.com/drivehq/selection-api/pkg/config"
	"github.com/drivehq/selection-api/pkg/database"
	"github.com/drivehq/selection-api/pkg/export"
	"github.com/drivehq/selection-api/pkg/logger"
	corsmiddleware "github.com/drivehq/selection-api/pkg/middleware/cors"
	reqidmiddleware "github.com/drivehq/selection-api/pkg/middleware/requestid"
	"github.com/drivehq/selection-api/pkg/storage"
)

// @title Selection Drive API
// @version 1.0.0
// @description Applicant lifecycle tracking for staged selection drives
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, search cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	applicantRepo := repository.NewApplicantRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	metrics := service.NewMetricsService()

	sink := service.NewAuditSink(auditRepo, service.AuditSinkConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
	}, logr)
	sink.Start(ctx)
	defer sink.Stop()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.SearchTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	stages := catalog.Default()
	applicantSvc := service.NewApplicantService(applicantRepo, stages, sink, cacheSvc, metrics, nil, logr)
	exportSvc := service.NewExportService(applicantRepo, sink, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	authSvc := service.NewAuthService(adminRepo, sink, nil, logr, service.AuthConfig{
		Secret:          cfg.JWT.Secret,
		TokenExpiry:     cfg.JWT.Expiration,
		EnvUsername:     cfg.Admin.Username,
		EnvPasswordHash: cfg.Admin.PasswordHash,
	})

	var backupSvc *service.BackupService
	if cfg.Backup.Enabled {
		store, err := storage.NewLocalStorage(cfg.Backup.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init backup storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Backup.SignedURLSecret, cfg.Backup.SignedURLTTL)
		backupSvc = service.NewBackupService(applicantRepo, store, signer, service.BackupServiceConfig{
			Interval:  cfg.Backup.Interval,
			Retention: cfg.Backup.Retention,
		}, logr)
		go backupSvc.Run(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	adminHandler := handler.NewAdminHandler(authSvc)
	applicantHandler := handler.NewApplicantHandler(applicantSvc, exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.POST("/admin/create", adminHandler.Create)
		protected.POST("/admin/change-password", adminHandler.ChangePassword)

		protected.GET("/applicants/lists", applicantHandler.ListStages)
		protected.POST("/applicants", applicantHandler.Create)
		protected.GET("/applicants/search", applicantHandler.Search)
		protected.GET("/applicants/export", applicantHandler.Export)
		protected.PUT("/applicants/:id/promote", applicantHandler.Promote)
		protected.PUT("/applicants/:id", applicantHandler.Update)
		protected.DELETE("/applicants/:id", applicantHandler.Delete)
		protected.GET("/applicants/:id/audit", applicantHandler.GetAudit)

		if backupSvc != nil {
			backupHandler := handler.NewBackupHandler(backupSvc, cfg.APIPrefix)
			protected.GET("/backups", backupHandler.List)
		}
	}
	if backupSvc != nil {
		// Token-authenticated, not JWT: the signed URL is the credential.
		backupHandler := handler.NewBackupHandler(backupSvc, cfg.APIPrefix)
		api.GET("/backups/download/:token", backupHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
