package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/lgu-assessor/faas-api/api/swagger"
	"github.com/lgu-assessor/faas-api/internal/handler"
	"github.com/lgu-assessor/faas-api/internal/middleware"
	"github.com/lgu-assessor/faas-api/internal/models"
	"github.com/lgu-assessor/faas-api/internal/repository"
	"github.com/lgu-assessor/faas-api/internal/service"
	"github.com/lgu-assessor/faas-api/pkg/artifact"
	"github.com/lgu-assessor/faas-api/pkg/cache"
	"github.com/lgu-assessor/faas-api/pkg/config"
	"github.com/lgu-assessor/faas-api/pkg/database"
	"github.com/lgu-assessor/faas-api/pkg/jobs"
	"github.com/lgu-assessor/faas-api/pkg/logger"
	corsmiddleware "github.com/lgu-assessor/faas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lgu-assessor/faas-api/pkg/middleware/requestid"
	"github.com/lgu-assessor/faas-api/pkg/runner"
	"github.com/lgu-assessor/faas-api/pkg/storage"
)

// @title FAAS Records API
// @version 1.0.0
// @description Field Appraisal and Assessment Sheet record management for the municipal assessor's office
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Generator.OutputDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare output directory", "error", err)
	}

	// repositories
	recordRepo := repository.NewRecordRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	// services
	var eventSvc *service.EventService
	metricsSvc := service.NewMetricsService(func() int {
		if eventSvc == nil {
			return 0
		}
		return eventSvc.SubscriberCount()
	})
	eventSvc = service.NewEventService(cfg.Events.SubscriberBuffer, metricsSvc, logr)

	generationSvc := service.NewGenerationService(
		recordRepo,
		runner.New(cfg.Generator.ProcessTimeout, logr),
		artifact.NewResolver(logr),
		files,
		metricsSvc,
		logr,
		service.GenerationConfig{
			PythonBin:       cfg.Generator.PythonBin,
			GeneratorScript: cfg.Generator.GeneratorScript,
			ConverterScript: cfg.Generator.ConverterScript,
			OutputDir:       cfg.Generator.OutputDir,
		},
	)

	validate := validator.New()
	dashboardSvc := service.NewDashboardService(recordRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)
	recordSvc := service.NewRecordService(recordRepo, auditRepo, eventSvc, generationSvc, dashboardSvc, validate, logr)
	auditSvc := service.NewAuditService(auditRepo, recordRepo, logr)
	exportSvc := service.NewExportService(auditRepo, recordRepo, logr)
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})

	// background generation queue
	worker := service.NewGenerationWorker(generationSvc, files, cfg.Generator.ArtifactRetention, logr)
	queue := jobs.NewQueue("generation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Generator.QueueWorkers,
		MaxRetries: cfg.Generator.QueueRetries,
		Logger:     logr,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Generator.ArtifactRetention > 0 {
		go func() {
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := queue.Enqueue(jobs.Job{ID: "retention", Type: service.JobTypeSweepArtifacts}); err != nil {
						logr.Warn("failed to enqueue artifact sweep", zap.Error(err))
					}
				}
			}
		}()
	}

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	recordHandler := handler.NewRecordHandler(recordSvc, generationSvc, queue, signer, files, logr)
	eventHandler := handler.NewEventHandler(eventSvc, cfg.Events.HeartbeatInterval, logr)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	auditHandler := handler.NewAuditHandler(auditSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/events", eventHandler.Stream)
	authed.GET("/files/download", recordHandler.Download)

	records := authed.Group("/records")
	records.GET("", recordHandler.List)
	records.GET("/:id", recordHandler.Get)
	records.GET("/:id/files", recordHandler.Files)
	records.GET("/:id/audit", auditHandler.List)
	records.GET("/:id/audit/export", auditHandler.Export)

	encoderOnly := middleware.RequireRoles(models.RoleEncoder)
	records.POST("", encoderOnly, recordHandler.Create)
	records.PUT("/:id", encoderOnly, recordHandler.Update)
	records.DELETE("/:id", encoderOnly, recordHandler.Delete)
	records.POST("/:id/submit", encoderOnly, recordHandler.Submit)
	records.POST("/:id/generate", encoderOnly, recordHandler.Generate)
	records.DELETE("/:id/files", encoderOnly, recordHandler.ClearFiles)

	approverOnly := middleware.RequireRoles(models.RoleApprover)
	records.POST("/:id/approve", approverOnly, recordHandler.Approve)
	records.POST("/:id/reject", approverOnly, recordHandler.Reject)
	records.POST("/:id/cancel-decision", middleware.RequireRoles(models.RoleEncoder, models.RoleApprover), recordHandler.CancelDecision)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	records.DELETE("/:id/audit", adminOnly, auditHandler.Purge)

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard/stats", dashboardHandler.Stats)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}
