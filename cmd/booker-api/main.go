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

	_ "github.com/noah-isme/room-booker/api/swagger"
	"github.com/noah-isme/room-booker/internal/handler"
	internalmiddleware "github.com/noah-isme/room-booker/internal/middleware"
	"github.com/noah-isme/room-booker/internal/models"
	"github.com/noah-isme/room-booker/internal/repository"
	"github.com/noah-isme/room-booker/internal/service"
	"github.com/noah-isme/room-booker/pkg/cache"
	"github.com/noah-isme/room-booker/pkg/config"
	"github.com/noah-isme/room-booker/pkg/database"
	"github.com/noah-isme/room-booker/pkg/jobs"
	"github.com/noah-isme/room-booker/pkg/llm"
	"github.com/noah-isme/room-booker/pkg/logger"
	corsmiddleware "github.com/noah-isme/room-booker/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/room-booker/pkg/middleware/requestid"
	"github.com/noah-isme/room-booker/pkg/portal"
)

// @title Room Booker API
// @version 1.0.0
// @description Plans and books group rooms on the university room portal
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Warn("unknown booking timezone, falling back to UTC", zap.String("timezone", cfg.Booking.Timezone), zap.Error(err))
		location = time.UTC
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, logr, service.CacheConfig{
		Enabled:    redisClient != nil,
		DefaultTTL: cfg.Booking.ScheduleCacheTTL,
		Prefix:     cfg.Redis.KeyPrefix,
	})

	portalClient, err := portal.New(portal.Config{
		BaseURL:            cfg.Portal.BaseURL,
		StudentLoginURL:    cfg.Portal.StudentLoginURL,
		StaffLoginURL:      cfg.Portal.StaffLoginURL,
		Username:           cfg.Portal.Username,
		Password:           cfg.Portal.Password,
		Staff:              cfg.Portal.Staff,
		ParticipantSearch:  cfg.Portal.ParticipantSearch,
		ParticipantID:      cfg.Portal.ParticipantID,
		RevalidateInterval: cfg.Portal.RevalidateInterval,
		Timeout:            cfg.Portal.Timeout,
		UserAgent:          cfg.Portal.UserAgent,
	}, service.ParseBookingOutcome, metrics, logr.Named("portal"))
	if err != nil {
		logr.Fatal("failed to build portal client", zap.Error(err))
	}

	llmClient := llm.New(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		Timeout:           cfg.LLM.Timeout,
	}, logr.Named("llm"))

	validate := validator.New()
	records := repository.NewBookingRecordRepository(db)
	proposals := service.NewProposalStore(cfg.Booking.ProposalTTL)

	worker := service.NewBookingWorker(proposals, portalClient, records, cacheSvc, metrics, cfg.Booking.WorkerRetries, logr.Named("worker"))
	queue := jobs.NewQueue("booking", worker.Handle, jobs.QueueConfig{
		Workers:      cfg.Booking.WorkerConcurrency,
		MaxRetries:   cfg.Booking.WorkerRetries,
		RetryDelay:   5 * time.Second,
		Logger:       logr,
		OnDeadLetter: worker.DeadLetter,
	})
	queue.Start(ctx)
	defer queue.Stop()

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "room-booker",
		Audience:          []string{"room-booker-api"},
		OperatorID:        cfg.Operator.ID,
		OperatorKeyHash:   cfg.Operator.KeyHash,
		Staff:             cfg.Portal.Staff,
	})
	bookingSvc := service.NewBookingService(portalClient, cacheSvc, queue, records, proposals, models.DefaultPreferenceTable(), metrics, validate, logr, service.BookingConfig{
		ScheduleCacheTTL: cfg.Booking.ScheduleCacheTTL,
		Location:         location,
		DefaultTitle:     cfg.Booking.DefaultTitle,
		BookableDays:     cfg.Booking.BookableDays,
		Staff:            cfg.Portal.Staff,
	})
	extractor := service.NewExtractionService(llmClient, validate, metrics, logr, service.ExtractionConfig{
		MaxRetries:   cfg.LLM.MaxRetries,
		Location:     location,
		BookableDays: cfg.Booking.BookableDays,
		Staff:        cfg.Portal.Staff,
	})
	assistantSvc := service.NewAssistantService(extractor, bookingSvc, validate, logr)
	exportSvc := service.NewExportService(logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	scheduleHandler := handler.NewScheduleHandler(bookingSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc, exportSvc)
	assistantHandler := handler.NewAssistantHandler(assistantSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"postgres": handler.PingFunc(db.PingContext),
		"redis":    cacheSvc,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.POST("/auth/token", authHandler.Token)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/rooms", scheduleHandler.Rooms)
	secured.GET("/schedules", scheduleHandler.List)
	secured.POST("/bookings", bookingHandler.Plan)
	secured.GET("/bookings/:id", bookingHandler.Get)
	secured.DELETE("/bookings/:id", bookingHandler.Discard)
	secured.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	secured.GET("/bookings/:id/export", bookingHandler.Export)
	secured.POST("/assistant/messages", assistantHandler.Message)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "staff", cfg.Portal.Staff)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
