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

	_ "github.com/noah-isme/exam-duty-api/api/swagger"
	"github.com/noah-isme/exam-duty-api/internal/handler"
	"github.com/noah-isme/exam-duty-api/internal/middleware"
	"github.com/noah-isme/exam-duty-api/internal/models"
	"github.com/noah-isme/exam-duty-api/internal/repository"
	"github.com/noah-isme/exam-duty-api/internal/service"
	"github.com/noah-isme/exam-duty-api/pkg/cache"
	"github.com/noah-isme/exam-duty-api/pkg/config"
	"github.com/noah-isme/exam-duty-api/pkg/database"
	"github.com/noah-isme/exam-duty-api/pkg/events"
	"github.com/noah-isme/exam-duty-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-duty-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-duty-api/pkg/middleware/requestid"
)

// @title Exam Duty API
// @version 1.0.0
// @description Exam invigilation duty scheduling and allocation
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and events disabled", zap.Error(err))
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examTypeRepo := repository.NewExamTypeRepository(db)
	requirementRepo := repository.NewRequirementRepository(db)
	restrictionRepo := repository.NewRestrictionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	confirmationRepo := repository.NewConfirmationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var publisher events.Publisher
	if cfg.Events.Enabled && redisClient != nil {
		dispatcher := events.NewDispatcher(events.NewRedisPublisher(redisClient, cfg.Events.Channel), events.DispatcherConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			Logger:     logr,
		})
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		publisher = dispatcher
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "exam-duty-api",
	})
	conflictService := service.NewConflictService(sessionRepo, facultyRepo, slotRepo, logr)
	dutyService := service.NewDutyService(
		sessionRepo, facultyRepo, examTypeRepo, slotRepo,
		restrictionRepo, requirementRepo, confirmationRepo, conflictService,
		db, publisher, cacheRepo, metrics,
		service.DutyServiceConfig{DefaultMaxDuties: cfg.Allocation.DefaultMaxDuties},
		logr,
	)
	autoAssignService := service.NewAutoAssignService(
		examTypeRepo, facultyRepo, slotRepo, requirementRepo,
		db, publisher, cacheRepo, metrics,
		service.AutoAssignConfig{
			CadreWeights:      cfg.Allocation.CadreWeights,
			DefaultMaxDuties:  cfg.Allocation.DefaultMaxDuties,
			ReallocationLimit: cfg.Allocation.ReallocationLimit,
		},
		logr,
	)
	rosterService := service.NewRosterService(facultyRepo, validate, logr)
	examTypeService := service.NewExamTypeService(examTypeRepo, requirementRepo, restrictionRepo, facultyRepo, validate, logr)
	sessionService := service.NewSessionService(examTypeRepo, sessionRepo, courseRepo, slotRepo, db, validate, logr)
	importService := service.NewImportService(examTypeRepo, courseRepo, sessionRepo, db, validate, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		exportService = service.NewExportService(examTypeRepo, slotRepo, facultyRepo, nil, nil, logr)
	}

	authHandler := handler.NewAuthHandler(authService)
	facultyHandler := handler.NewFacultyHandler(rosterService)
	examTypeHandler := handler.NewExamTypeHandler(examTypeService, autoAssignService, exportService)
	sessionHandler := handler.NewSessionHandler(sessionService, importService, conflictService, dutyService)
	dutyHandler := handler.NewDutyHandler(dutyService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.GET("/health/live", healthHandler.Live)
	api.GET("/health/ready", healthHandler.Ready)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("", middleware.Authenticate(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.PUT("/auth/password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/faculty", facultyHandler.List)
		authed.GET("/faculty/:id", facultyHandler.Get)

		authed.GET("/exam-types", examTypeHandler.List)
		authed.GET("/exam-types/:id", examTypeHandler.Get)
		authed.GET("/exam-types/:id/requirements", examTypeHandler.ListRequirements)
		authed.GET("/exam-types/:id/restrictions", examTypeHandler.ListRestrictions)

		authed.GET("/courses", sessionHandler.ListCourses)
		authed.GET("/sessions", sessionHandler.List)
		authed.GET("/sessions/:id", sessionHandler.Get)
		authed.GET("/sessions/:id/conflict", sessionHandler.Conflict)
		authed.GET("/sessions/:id/eligibility", sessionHandler.Eligibility)

		faculty := authed.Group("", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin))
		{
			faculty.POST("/sessions/:id/pick", sessionHandler.Pick)
			faculty.GET("/duties", dutyHandler.ListHeld)
			faculty.POST("/duties/release", dutyHandler.Release)
			faculty.POST("/duties/confirm", dutyHandler.Confirm)
			faculty.GET("/duties/progress", dutyHandler.Progress)
		}

		admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/faculty", facultyHandler.Create)
			admin.PUT("/faculty/:id", facultyHandler.Update)
			admin.DELETE("/faculty/:id", facultyHandler.Delete)

			admin.POST("/exam-types", examTypeHandler.Create)
			admin.PUT("/exam-types/:id", examTypeHandler.Update)
			admin.DELETE("/exam-types/:id", examTypeHandler.Delete)
			admin.PUT("/exam-types/:id/requirements", examTypeHandler.UpsertRequirement)
			admin.PUT("/exam-types/:id/restrictions", examTypeHandler.UpsertRestriction)
			admin.GET("/exam-types/:id/exceptions", examTypeHandler.ListExceptions)
			admin.PUT("/exam-types/:id/exceptions", examTypeHandler.UpsertException)
			admin.GET("/exam-types/:id/exemptions", examTypeHandler.ListExemptions)
			admin.POST("/exam-types/:id/exemptions", examTypeHandler.GrantExemption)
			admin.POST("/exam-types/:id/auto-assign", examTypeHandler.AutoAssign)
			admin.GET("/exam-types/:id/export", examTypeHandler.ExportRoster)

			admin.POST("/sessions", sessionHandler.Create)
			admin.POST("/sessions/import", sessionHandler.Import)
			admin.POST("/sessions/:id/close", sessionHandler.Close)
			admin.POST("/sessions/:id/reopen", sessionHandler.Reopen)
			admin.DELETE("/sessions/:id", sessionHandler.Delete)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
