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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/migrations"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title Timetable Scheduler API
// @version 1.0.0
// @description Weekly class schedule generation with greedy and genetic search
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, migrations.FS)
		if err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("schema up to date", zap.Strings("applied", applied))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("schedule cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo := repository.NewCacheRepository(client, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
			readiness["redis"] = cacheRepo.Ping
		}
	}

	eng := engine.New(engine.Options{
		Genetic: engine.GeneticConfig{
			Population:       cfg.Scheduler.PopulationSize,
			Generations:      cfg.Scheduler.Generations,
			CrossoverRate:    cfg.Scheduler.CrossoverRate,
			MutationRate:     cfg.Scheduler.MutationRate,
			GeneMutationRate: cfg.Scheduler.GeneMutationRate,
			TournamentSize:   cfg.Scheduler.TournamentSize,
		},
		Workers: cfg.Scheduler.Workers,
		Logger:  logr.Named("engine"),
	})

	scheduleRepo := repository.NewScheduleRepository(db)
	generator := service.NewScheduleGeneratorService(eng, scheduleRepo, cacheSvc, metrics, validate, logr, service.ScheduleGeneratorConfig{
		MaxSubjects:      cfg.Scheduler.MaxSubjects,
		FillPlaceholders: cfg.Scheduler.FillPlaceholders,
		Timeout:          cfg.Scheduler.Timeout,
		ProposalTTL:      cfg.Scheduler.ProposalTTL,
		CacheTTL:         cfg.Cache.TTL,
	})
	exports := service.NewExportService(generator, logr, export.NewCSVExporter(export.CSVOptions(cfg.Export.CSVDelimiter, cfg.Export.CSVBOM)...), export.NewPDFExporter())

	var jobSvc *service.ScheduleJobService
	if cfg.Jobs.Enabled {
		jobSvc = service.NewScheduleJobService(generator, metrics, validate, logr, service.ScheduleJobConfig{
			Workers:    cfg.Jobs.Workers,
			Retries:    cfg.Jobs.Retries,
			RetryDelay: cfg.Jobs.RetryDelay,
			BufferSize: cfg.Jobs.BufferSize,
			ResultTTL:  cfg.Jobs.ResultTTL,
		})
		jobSvc.Start(ctx)
		defer jobSvc.Stop()
	}

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	scheduleHandler := handler.NewScheduleGeneratorHandler(generator, exports, jobSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// open routes accept anonymous callers but still verify a presented token.
	var open, read, write []gin.HandlerFunc
	if cfg.Auth.Enabled {
		open = append(open, middleware.OptionalJWT(authSvc))
		read = append(read, middleware.JWT(authSvc))
		write = append(write, middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator))
	} else {
		logr.Warn("authentication disabled, schedule routes are open")
	}

	api.GET("/metrics/summary", secured(read, metricsHandler.Summary)...)

	schedules := api.Group("/schedules")
	schedules.GET("", secured(read, scheduleHandler.List)...)
	schedules.GET("/latest", secured(read, scheduleHandler.Latest)...)
	schedules.GET("/:id", secured(read, scheduleHandler.Get)...)
	schedules.GET("/:id/export", secured(read, scheduleHandler.Export)...)
	schedules.GET("/jobs/:id", secured(read, scheduleHandler.JobStatus)...)
	schedules.POST("/generate", secured(write, scheduleHandler.Generate)...)
	schedules.POST("/validate", secured(open, scheduleHandler.Validate)...)
	schedules.POST("/proposals/:id", secured(write, scheduleHandler.SaveProposal)...)
	schedules.POST("/jobs", secured(write, scheduleHandler.SubmitJob)...)
	schedules.DELETE("/:id", secured(write, scheduleHandler.Delete)...)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "auth", cfg.Auth.Enabled, "jobs", cfg.Jobs.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func secured(guards []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(guards)+1)
	chain = append(chain, guards...)
	return append(chain, h)
}
