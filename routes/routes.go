package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/zatyrani/zatyrani-backend/config"
	_ "github.com/zatyrani/zatyrani-backend/docs"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/auth"
	"github.com/zatyrani/zatyrani-backend/internal/event"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
	"github.com/zatyrani/zatyrani-backend/internal/metrics"
	"github.com/zatyrani/zatyrani-backend/internal/niebocross"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/internal/payment"
	"github.com/zatyrani/zatyrani-backend/internal/rally"
	"github.com/zatyrani/zatyrani-backend/internal/reports"
	"github.com/zatyrani/zatyrani-backend/internal/sheets"
	"github.com/zatyrani/zatyrani-backend/internal/training"
	"github.com/zatyrani/zatyrani-backend/middleware"
	"github.com/zatyrani/zatyrani-backend/utils"
)

// Dependencies are the process-wide resources built in main.
type Dependencies struct {
	DB       *gorm.DB
	Redis    *redis.Client // nil when Redis is not configured
	Contents ghstore.Contents
	Notifier notification.Service
	Provider payment.Provider
	Sheet    sheets.Writer // nil when the spreadsheet export is not configured
}

func Setup(r *gin.Engine, cfg *config.Config, deps Dependencies) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(middleware.RateLimiter(middleware.NewLimiterStore(deps.Redis, "ratelimit")))
	api.Use(middleware.AuditMiddleware())

	// ========== Audit Log ==========
	auditRepo := auditlog.NewRepository(deps.DB)
	auditSvc := auditlog.NewService(auditRepo)
	auditHandler := auditlog.NewHandler(auditSvc)

	// ========== Member Auth ==========
	codeThrottle := utils.NewThrottle(middleware.NewLimiterStore(deps.Redis, "login-codes"), 3, time.Hour)
	authRepo := auth.NewRepository(deps.DB)
	authSvc := auth.NewService(authRepo, deps.Notifier, codeThrottle, auditSvc, cfg)
	authHandler := auth.NewHandler(authSvc, cfg.IsProduction())
	memberOnly := middleware.MemberAuth(authSvc)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/request-code", authHandler.RequestCode)
		authGroup.POST("/verify-code", authHandler.VerifyCode)
		authGroup.GET("/verify-me", authHandler.VerifyMe)
		authGroup.POST("/logout", authHandler.Logout)
	}

	api.GET("/admin/audit-logs", memberOnly, auditHandler.GetAuditLogs)

	// ========== Events & Trainings ==========
	eventHandler := event.NewHandler(event.NewService(deps.Contents, auditSvc))
	events := api.Group("/events")
	{
		events.GET("", eventHandler.ListEvents)
		events.POST("", memberOnly, eventHandler.CreateEvent)
		events.PUT("/:uid", memberOnly, eventHandler.UpdateEvent)
		events.DELETE("/:uid", memberOnly, eventHandler.DeleteEvent)
	}

	trainingHandler := training.NewHandler(training.NewService(deps.Contents, auditSvc))
	trainings := api.Group("/trainings")
	{
		trainings.GET("", trainingHandler.ListTrainings)
		trainings.POST("", memberOnly, trainingHandler.CreateTraining)
		trainings.PUT("/:uid", memberOnly, trainingHandler.UpdateTraining)
		trainings.DELETE("/:uid", memberOnly, trainingHandler.DeleteTraining)
	}

	rallyHandler := rally.NewHandler(rally.NewService(deps.Contents, auditSvc))
	api.GET("/nwrajd/participants", rallyHandler.List)
	api.POST("/nwrajd/participants", memberOnly, rallyHandler.Register)

	// ========== NieboCross ==========
	tokens := niebocross.NewTokens(cfg.NieboCrossJWTSecret, time.Duration(cfg.NieboCrossJWTTTLDays)*24*time.Hour)
	ncSvc := niebocross.NewService(
		niebocross.NewRepository(deps.DB),
		tokens,
		deps.Notifier,
		deps.Provider,
		reports.NewReportExporter(),
		deps.Sheet,
		auditSvc,
		cfg,
	)
	ncHandler := niebocross.NewHandler(ncSvc, cfg.IsProduction())
	registered := middleware.NieboCrossAuth(tokens)

	nc := api.Group("/niebocross")
	{
		nc.POST("/auth/start-registration", ncHandler.StartRegistration)
		nc.POST("/auth/request-code", ncHandler.RequestCode)
		nc.POST("/auth/verify-code", ncHandler.VerifyCode)
		nc.POST("/auth/logout", ncHandler.Logout)

		nc.POST("/participants", registered, ncHandler.AddParticipants)
		nc.PUT("/participants/:id", registered, ncHandler.UpdateParticipant)
		nc.DELETE("/participants/:id", registered, ncHandler.DeleteParticipant)
		nc.GET("/dashboard", registered, ncHandler.Dashboard)
		nc.GET("/confirmation", registered, ncHandler.Confirmation)

		nc.GET("/payment/:id", ncHandler.PaymentStatus)
		nc.POST("/payment/link", registered, ncHandler.CreatePaymentLink)
		nc.POST("/payment/webhook", ncHandler.Webhook)

		nc.GET("/registrations", ncHandler.PublicParticipants)
		nc.GET("/clubs/search", ncHandler.SearchClubs)
		nc.GET("/limits", ncHandler.Limits)

		nc.GET("/reminders/send-payment-reminder", middleware.CronAuth(cfg.CronSecret), ncHandler.SendPaymentReminders)

		nc.GET("/admin/export", memberOnly, ncHandler.ExportParticipants)
		nc.POST("/admin/sheets-sync", memberOnly, ncHandler.SyncSheet)
	}
}
