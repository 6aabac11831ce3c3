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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	_ "github.com/noah-isme/study-companion-api/api/swagger"
	"github.com/noah-isme/study-companion-api/internal/handler"
	"github.com/noah-isme/study-companion-api/internal/middleware"
	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/internal/repository"
	"github.com/noah-isme/study-companion-api/internal/service"
	"github.com/noah-isme/study-companion-api/pkg/cache"
	"github.com/noah-isme/study-companion-api/pkg/config"
	"github.com/noah-isme/study-companion-api/pkg/database"
	"github.com/noah-isme/study-companion-api/pkg/export"
	"github.com/noah-isme/study-companion-api/pkg/gcal"
	"github.com/noah-isme/study-companion-api/pkg/logger"
	"github.com/noah-isme/study-companion-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/study-companion-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/study-companion-api/pkg/middleware/requestid"
	"github.com/noah-isme/study-companion-api/pkg/mongodb"
)

// @title Study Companion API
// @version 1.0.0
// @description Mirrors a student's calendar, detects assignments, plans study sessions and sends reminders.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Calendar.TimeZone)
	if err != nil {
		logr.Sugar().Fatalw("invalid calendar time zone", "time_zone", cfg.Calendar.TimeZone, "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres unavailable", "error", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Sugar().Fatalw("apply schema", "error", err)
		}
	}

	mongoClient, err := mongodb.NewClient(ctx, cfg.Mongo)
	if err != nil {
		logr.Sugar().Fatalw("mongo unavailable", "error", err)
	}
	defer mongoClient.Disconnect(context.Background()) //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, response caching disabled", zap.Error(err))
			redisClient = nil
		}
	}

	sender, err := mail.New(cfg.Mail, logr)
	if err != nil {
		logr.Sugar().Fatalw("mail driver", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	app := wire(ctx, cfg, loc, logr, db, mongoClient, redisClient, sender, metricsSvc)

	if cfg.Agent.Enabled {
		if err := app.agent.Start(); err != nil {
			logr.Warn("agent not started", zap.Error(err))
		}
	}
	defer app.agent.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
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
		logr.Warn("server shutdown", zap.Error(err))
	}
}

type application struct {
	router *gin.Engine
	agent  *service.Agent
}

func wire(ctx context.Context, cfg *config.Config, loc *time.Location, logr *zap.Logger, db *sqlx.DB, mongoClient *mongo.Client, redisClient *redis.Client, sender mail.Sender, metricsSvc *service.MetricsService) *application {
	assignmentRepo := repository.NewAssignmentRepository(db)
	sessionRepo := repository.NewStudySessionRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	eventRepo := repository.NewCalendarEventRepository(mongodb.Collection(mongoClient, cfg.Mongo))
	if err := eventRepo.EnsureIndexes(ctx); err != nil {
		logr.Warn("calendar event indexes", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "study:")
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	// Interface values stay nil when the calendar is not configured so the
	// services take their offline paths.
	var (
		eventSource interface {
			ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]models.CalendarItem, error)
		}
		busySource  service.BusySource
		sessionSink interface {
			InsertSessionEvent(ctx context.Context, evt models.SessionEvent) (string, error)
		}
	)
	if calendarSvc, err := gcal.NewService(ctx, cfg.Calendar); err != nil {
		logr.Warn("google calendar unavailable, running without it", zap.Error(err))
	} else {
		gateway := repository.NewGoogleCalendarRepository(calendarSvc, cfg.Calendar.CalendarID, loc)
		eventSource, busySource, sessionSink = gateway, gateway, gateway
	}

	detector := service.NewAssignmentDetector(loc, nil)
	syncSvc := service.NewCalendarSyncService(eventSource, eventRepo, cacheSvc, metricsSvc, cfg.Calendar, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, profileRepo, eventRepo, detector, cacheSvc, logr)
	notificationSvc := service.NewNotificationService(sender, metricsSvc, cfg.Mail.FrontendURL, loc, logr)
	reminderSvc := service.NewReminderService(assignmentSvc, notificationSvc, eventRepo, loc, logr)
	planner := service.NewSessionPlanner(service.NewSlotFinder(busySource, cfg.Planner.Step, logr), cfg.Planner)
	studyPlanSvc := service.NewStudyPlanService(assignmentRepo, sessionRepo, planner, sessionSink, profileRepo, metricsSvc,
		service.StudyPlanConfig{Location: loc, FrontendURL: cfg.Mail.FrontendURL}, logr)
	exportSvc := service.NewExportService(assignmentRepo, studyPlanSvc, loc, logr, export.NewCSVExporter(), export.NewPDFExporter())
	authSvc := service.NewAuthService(cfg.JWT, logr)
	agent := service.NewAgent(syncSvc, reminderSvc, metricsSvc, cfg.Agent, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"mongo":    func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	calendarHandler := handler.NewCalendarHandler(syncSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	studyPlanHandler := handler.NewStudyPlanHandler(studyPlanSvc, exportSvc)
	reminderHandler := handler.NewReminderHandler(reminderSvc, notificationSvc)
	agentHandler := handler.NewAgentHandler(agent)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	api.GET("/system/metrics", metricsHandler.Snapshot)

	api.GET("/calendar/stats", calendarHandler.Stats)
	api.POST("/calendar/sync", calendarHandler.Sync)
	api.GET("/calendar/events", calendarHandler.Events)

	assignments := api.Group("/assignments")
	assignments.GET("", assignmentHandler.List)
	assignments.GET("/unprocessed", calendarHandler.Unprocessed)
	assignments.GET("/upcoming", calendarHandler.Upcoming)
	assignments.POST("/sync", assignmentHandler.Sync)
	assignments.POST("/detect", assignmentHandler.Detect)
	assignments.GET("/:id", assignmentHandler.Get)
	assignments.POST("/:id/materials", studyPlanHandler.UploadMaterials)
	assignments.POST("/:id/sessions/preview", studyPlanHandler.PreviewSessions)
	assignments.POST("/:id/sessions", studyPlanHandler.CreateSessions)
	assignments.GET("/:id/sessions", studyPlanHandler.ListSessions)
	assignments.GET("/:id/plan/export", studyPlanHandler.Export)

	api.POST("/reminders/check", reminderHandler.Check)
	api.POST("/reminders/send", reminderHandler.Send)
	api.POST("/notifications/test", reminderHandler.TestEmail)

	api.POST("/agent/start", agentHandler.Start)
	api.POST("/agent/stop", agentHandler.Stop)
	api.GET("/agent/status", agentHandler.Status)

	return &application{router: r, agent: agent}
}
