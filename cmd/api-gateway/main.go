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
	"go.uber.org/zap"

	_ "github.com/noah-isme/hostel-allocation-api/api/swagger"
	"github.com/noah-isme/hostel-allocation-api/internal/handler"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	"github.com/noah-isme/hostel-allocation-api/internal/service"
	"github.com/noah-isme/hostel-allocation-api/pkg/cache"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
	"github.com/noah-isme/hostel-allocation-api/pkg/database"
	"github.com/noah-isme/hostel-allocation-api/pkg/googleauth"
	"github.com/noah-isme/hostel-allocation-api/pkg/jobs"
	"github.com/noah-isme/hostel-allocation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hostel-allocation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hostel-allocation-api/pkg/middleware/requestid"
)

// @title Hostel Allocation API
// @version 1.0.0
// @description Room preferences, auto-assignment, swaps and change applications for hostel residents
// @BasePath /
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var cacheRepo service.CacheRepository
	readiness := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if cfg.Cache.AvailabilityEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, "hostel", logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			readiness = append(readiness, handler.ReadinessCheck{Name: "redis", Check: redisRepo.Ping})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.AvailabilityTTL, logr, cacheRepo != nil)

	txManager := repository.NewTxManager(db)
	roomRepo := repository.NewRoomRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	swapRepo := repository.NewSwapRepository(db)
	applicationRepo := repository.NewChangeApplicationRepository(db)
	userRepo := repository.NewUserRepository(db)

	auditQueue := jobs.NewQueue("audit", service.AuditJobHandler(userRepo), jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     logr,
	})
	auditWriter := service.NewAsyncAuditWriter(userRepo, auditQueue, logr)
	auditQueue.Start(ctx)
	defer auditQueue.Stop()

	validate := validator.New()
	catalog := service.NewHostelCatalog(cfg.Hostels.PremiumNumbers, cfg.Hostels.NamedHostels)

	allocationSvc := service.NewAllocationService(service.AllocationDeps{
		Rooms:    roomRepo,
		Profiles: profileRepo,
		Tx:       txManager,
		Catalog:  catalog,
		Audit:    auditWriter,
		Cache:    cacheSvc,
		Metrics:  metricsSvc,
	}, validate, logr)
	swapSvc := service.NewSwapService(service.SwapDeps{
		Rooms:    roomRepo,
		Profiles: profileRepo,
		Swaps:    swapRepo,
		Tx:       txManager,
		Audit:    auditWriter,
		Cache:    cacheSvc,
		Metrics:  metricsSvc,
	}, validate, logr)
	changeSvc := service.NewChangeApplicationService(service.ChangeApplicationDeps{
		Rooms:        roomRepo,
		Profiles:     profileRepo,
		Applications: applicationRepo,
		Tx:           txManager,
		Catalog:      catalog,
		Audit:        auditWriter,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
	}, validate, logr)
	roomSvc := service.NewRoomService(service.RoomServiceParams{
		Rooms:   roomRepo,
		Catalog: catalog,
		Audit:   auditWriter,
		Cache:   cacheSvc,
		Config:  service.RoomServiceConfig{AvailabilityTTL: cfg.Cache.AvailabilityTTL},
	}, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Rooms:        roomRepo,
		Profiles:     profileRepo,
		Swaps:        swapRepo,
		Applications: applicationRepo,
		Logger:       logr,
	})
	authSvc := service.NewAuthService(
		userRepo,
		googleauth.NewVerifier(cfg.Auth.GoogleClientID),
		service.NewRolePolicy(cfg.Auth.AdminEmails, cfg.Auth.AllowedStudentDomain),
		validate,
		logr,
		service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
			Issuer:             cfg.JWT.Issuer,
		},
	)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, routeDeps{
		auth:         authSvc,
		audit:        auditWriter,
		loginLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		authH:        handler.NewAuthHandler(authSvc),
		allocationH:  handler.NewAllocationHandler(allocationSvc),
		swapH:        handler.NewSwapHandler(swapSvc),
		applicationH: handler.NewApplicationHandler(changeSvc),
		roomH:        handler.NewRoomHandler(roomSvc),
		dashboardH:   handler.NewDashboardHandler(dashboardSvc),
		metricsH:     handler.NewMetricsHandler(metricsSvc, readiness...),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
