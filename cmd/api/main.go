package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/flightline-dev/flightline-api/api/swagger"
	"github.com/flightline-dev/flightline-api/internal/handler"
	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	"github.com/flightline-dev/flightline-api/internal/service"
	"github.com/flightline-dev/flightline-api/pkg/cache"
	"github.com/flightline-dev/flightline-api/pkg/config"
	"github.com/flightline-dev/flightline-api/pkg/database"
	"github.com/flightline-dev/flightline-api/pkg/jobs"
	"github.com/flightline-dev/flightline-api/pkg/logger"
	corsmiddleware "github.com/flightline-dev/flightline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/flightline-dev/flightline-api/pkg/middleware/requestid"
	"github.com/flightline-dev/flightline-api/pkg/storage"
)

// @title Flightline API
// @version 1.0.0
// @description Flight school operations portal: roster, scheduling, training progress and billing.
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsService := service.NewMetricsService()

	// Redis is an accelerator, not a dependency: the portal runs without it.
	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheEnabled = false
	}
	var cacheRepo service.CacheRepository
	if cacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	aircraftRepo := repository.NewAircraftRepository(db)
	syllabusRepo := repository.NewSyllabusRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	rateRepo := repository.NewRateRepository(db)
	costRepo := repository.NewSessionCostRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	exportRepo := repository.NewExportRepository(db)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "flightline-api",
	})
	userService := service.NewUserService(userRepo, nil, logr)
	rosterService := service.NewRosterService(studentRepo, instructorRepo, nil, logr)
	aircraftService := service.NewAircraftService(aircraftRepo, nil, logr)
	syllabusService := service.NewSyllabusService(syllabusRepo, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, nil, logr)
	progressService := service.NewProgressService(progressRepo, enrollmentService, syllabusRepo, nil, logr)

	rateService := service.NewRateService(rateRepo, cfg.Billing.DefaultFlightRate, cfg.Billing.DefaultGroundRate, nil, logr)
	ledgerService := service.NewLedgerService(accountRepo, cfg.Billing.LowBalanceDefault, cfg.Billing.BalanceRetries, nil, logr)
	billingService := service.NewBillingService(costRepo, invoiceRepo, aircraftRepo, rateService,
		cfg.Billing.FuelSurchargeRate, cfg.Billing.SessionFee, cfg.Billing.InvoiceDueDays, nil, logr)
	sessionService := service.NewSessionService(sessionRepo, aircraftRepo, billingService, nil, logr)
	paymentService := service.NewPaymentService(paymentRepo, ledgerService, billingService, nil, logr)

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	documentService := service.NewDocumentService(documentRepo, documentStore, cfg.Documents, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(invoiceRepo, accountRepo, exportStore, exportSigner,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr, nil, nil)

	exportWorker := service.NewExportWorker(exportRepo, exportService, cfg.Exports.WorkerRetries, logr)
	exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportJobService := service.NewExportJobService(exportRepo, exportQueue, exportService, logr, service.ExportJobServiceConfig{
		ResultTTL:  cfg.Exports.SignedURLTTL,
		MaxRetries: cfg.Exports.WorkerRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exportQueue.Start(ctx)
	defer exportQueue.Stop()
	exportJobService.RecoverPendingJobs(ctx)
	exportJobService.StartCleanup(ctx)

	dashboardService := service.NewDashboardService(studentRepo, instructorRepo, aircraftRepo,
		sessionRepo, invoiceRepo, accountRepo, cacheService, cfg.Dashboard.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	rosterHandler := handler.NewRosterHandler(rosterService)
	aircraftHandler := handler.NewAircraftHandler(aircraftService)
	trainingHandler := handler.NewTrainingHandler(syllabusService, enrollmentService, progressService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	billingHandler := handler.NewBillingHandler(rateService, billingService, sessionService, exportService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	paymentHandler := handler.NewPaymentHandler(paymentService, dashboardService)
	documentHandler := handler.NewDocumentHandler(documentService)
	exportHandler := handler.NewExportHandler(exportJobService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authService, rosterService, userRepo, logr, routeHandlers{
		auth:      authHandler,
		users:     userHandler,
		roster:    rosterHandler,
		aircraft:  aircraftHandler,
		training:  trainingHandler,
		sessions:  sessionHandler,
		billing:   billingHandler,
		ledger:    ledgerHandler,
		payments:  paymentHandler,
		documents: documentHandler,
		exports:   exportHandler,
		dashboard: dashboardHandler,
		metrics:   metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type routeHandlers struct {
	auth      *handler.AuthHandler
	users     *handler.UserHandler
	roster    *handler.RosterHandler
	aircraft  *handler.AircraftHandler
	training  *handler.TrainingHandler
	sessions  *handler.SessionHandler
	billing   *handler.BillingHandler
	ledger    *handler.LedgerHandler
	payments  *handler.PaymentHandler
	documents *handler.DocumentHandler
	exports   *handler.ExportHandler
	dashboard *handler.DashboardHandler
	metrics   *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, authService *service.AuthService, rosterService *service.RosterService, userRepo *repository.UserRepository, logr *zap.Logger, h routeHandlers) {
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.auth.Login)
		auth.POST("/refresh", h.auth.Refresh)
		auth.POST("/forgot-password", h.auth.ForgotPassword)
		auth.POST("/reset-password", h.auth.ResetPassword)
	}

	// Signed tokens carry their own authorization, so downloads skip JWT.
	api.GET("/documents/download", h.documents.Download)
	api.GET("/exports/download/:token", h.exports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	authed.Use(middleware.StudentScope(rosterService))
	{
		authed.POST("/auth/logout", h.auth.Logout)
		authed.GET("/auth/me", h.auth.Me)
		authed.POST("/auth/change-password", middleware.Audit(userRepo, logr, models.AuditActionPasswordChange, "auth"), h.auth.ChangePassword)
	}

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)

	users := authed.Group("/users", admin)
	{
		users.GET("", h.users.List)
		users.POST("", middleware.Audit(userRepo, logr, models.AuditActionUserCreate, "users"), h.users.Create)
		users.GET("/:id", h.users.Get)
		users.PUT("/:id", middleware.Audit(userRepo, logr, models.AuditActionUserUpdate, "users"), h.users.Update)
		users.DELETE("/:id", middleware.Audit(userRepo, logr, models.AuditActionUserDelete, "users"), h.users.Delete)
	}

	students := authed.Group("/students")
	{
		students.POST("", admin, h.roster.CreateStudent)
		students.GET("", staff, h.roster.ListStudents)
		students.GET("/:id", h.roster.GetStudent)
		students.PUT("/:id/solo-endorsement", staff, h.roster.SetSoloEndorsement)
		students.DELETE("/:id", admin, h.roster.DeactivateStudent)
	}

	instructors := authed.Group("/instructors")
	{
		instructors.POST("", admin, h.roster.CreateInstructor)
		instructors.GET("", h.roster.ListInstructors)
		instructors.GET("/:id", h.roster.GetInstructor)
		instructors.DELETE("/:id", admin, h.roster.DeactivateInstructor)
	}

	aircraft := authed.Group("/aircraft")
	{
		aircraft.GET("", h.aircraft.List)
		aircraft.GET("/:id", h.aircraft.Get)
		aircraft.POST("", admin, h.aircraft.Create)
		aircraft.PUT("/:id", admin, h.aircraft.Update)
	}

	syllabi := authed.Group("/syllabi")
	{
		syllabi.GET("", h.training.ListSyllabi)
		syllabi.GET("/:id", h.training.GetSyllabus)
		syllabi.POST("", admin, h.training.CreateSyllabus)
		syllabi.PUT("/:id", admin, h.training.UpdateSyllabus)
		syllabi.POST("/:id/lessons", admin, h.training.AddLesson)
		syllabi.PUT("/:id/lessons/:lessonId", admin, h.training.UpdateLesson)
	}

	enrollments := authed.Group("/enrollments")
	{
		enrollments.POST("", staff, h.training.Enroll)
		enrollments.GET("", h.training.ListEnrollments)
		enrollments.GET("/:id", h.training.GetEnrollment)
		enrollments.POST("/:id/complete", staff, h.training.CompleteEnrollment)
		enrollments.POST("/:id/withdraw", staff, h.training.WithdrawEnrollment)
		enrollments.PUT("/:id/instructor", admin, h.training.ReassignInstructor)
		enrollments.PUT("/:id/progress", staff, h.training.UpdateProgress)
		enrollments.GET("/:id/progress", h.training.ProgressSummary)
	}

	sessions := authed.Group("/sessions")
	{
		sessions.POST("", staff, h.sessions.Schedule)
		sessions.GET("", h.sessions.List)
		sessions.GET("/:id", h.sessions.Get)
		sessions.POST("/:id/complete", staff, h.sessions.Complete)
		sessions.POST("/:id/cancel", staff, h.sessions.Cancel)
		sessions.POST("/:id/no-show", staff, h.sessions.MarkNoShow)
		sessions.POST("/:id/recompute-cost", admin, h.billing.RecomputeSessionCost)
	}

	rates := authed.Group("/rates")
	{
		rates.PUT("", admin, middleware.Audit(userRepo, logr, models.AuditActionRateChange, "rates"), h.billing.SetRate)
		rates.GET("/resolve", staff, h.billing.ResolveRate)
		rates.GET("/history", h.billing.RateHistory)
	}

	authed.GET("/session-costs", h.billing.ListSessionCosts)

	invoices := authed.Group("/invoices")
	{
		invoices.POST("", admin, middleware.Audit(userRepo, logr, models.AuditActionInvoiceCreate, "invoices"), h.billing.AssembleInvoice)
		invoices.GET("", h.billing.ListInvoices)
		invoices.GET("/:id", h.billing.GetInvoice)
		invoices.GET("/:id/pdf", h.billing.InvoicePDF)
		invoices.POST("/:id/send", admin, h.billing.SendInvoice)
		invoices.POST("/:id/cancel", admin, middleware.Audit(userRepo, logr, models.AuditActionInvoiceCancel, "invoices"), h.billing.CancelInvoice)
		invoices.POST("/sweep-overdue", admin, h.billing.SweepOverdue)
	}

	accounts := authed.Group("/accounts")
	{
		accounts.GET("/:studentId", h.ledger.GetAccount)
		accounts.GET("/:studentId/transactions", h.ledger.ListTransactions)
		accounts.POST("/:studentId/adjustments", admin, middleware.Audit(userRepo, logr, models.AuditActionAdjustment, "accounts"), h.ledger.Adjust)
		accounts.PUT("/:studentId/status", admin, h.ledger.SetAccountStatus)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("", staff, middleware.Audit(userRepo, logr, models.AuditActionPaymentRecord, "payments"), h.payments.Record)
		payments.GET("", h.payments.List)
		payments.GET("/:id", h.payments.Get)
	}

	documents := authed.Group("/documents")
	{
		documents.POST("", h.documents.Upload)
		documents.GET("", h.documents.List)
		documents.POST("/:id/token", h.documents.DownloadToken)
		documents.DELETE("/:id", staff, h.documents.Delete)
	}

	exports := authed.Group("/exports")
	{
		exports.POST("", h.exports.Create)
		exports.GET("/:id", h.exports.Status)
	}

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard/summary", staff, h.dashboard.Summary)
	}
	authed.GET("/dashboard/system", admin, h.metrics.System)
}
