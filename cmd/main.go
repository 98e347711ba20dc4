package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/config"
	"github.com/zatyrani/zatyrani-backend/database"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/auth"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
	"github.com/zatyrani/zatyrani-backend/internal/metrics"
	"github.com/zatyrani/zatyrani-backend/internal/niebocross"
	"github.com/zatyrani/zatyrani-backend/internal/notification"
	"github.com/zatyrani/zatyrani-backend/internal/payment"
	"github.com/zatyrani/zatyrani-backend/internal/sheets"
	"github.com/zatyrani/zatyrani-backend/routes"
	"github.com/zatyrani/zatyrani-backend/utils"
)

// @title Zatyrani API
// @version 1.0
// @description Backend of zatyrani.pl: events, trainings, member login and NieboCross race registration.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg)

	// Auto-migrate models
	logrus.Info("🔄 Running database migrations...")
	if err := db.AutoMigrate(
		&auditlog.AuditLog{},
		&notification.NotificationLog{},
		&auth.Member{},
		&auth.LoginCode{},
		&auth.Session{},
		&niebocross.Registration{},
		&niebocross.Participant{},
		&niebocross.Payment{},
		&niebocross.AuthCode{},
		&niebocross.Club{},
	); err != nil {
		logrus.WithError(err).Fatal("❌ DB AutoMigrate failed")
	}
	logrus.Info("✅ Database migrations completed")

	// Init Redis
	redisClient, err := utils.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Redis unavailable, continuing with in-memory stores")
		redisClient = nil
	}

	metrics.Register()

	// Notifications: Kafka when brokers are configured, inline delivery otherwise
	publisher := notification.NewKafkaPublisher(cfg)
	var queue notification.Publisher
	if publisher != nil {
		queue = publisher
		defer publisher.Close()
	}
	notifier := notification.NewService(
		notification.NewRepository(db),
		notification.NewEmailChannel(cfg),
		notification.NewSMSChannel(cfg),
		queue,
	)
	go notification.StartKafkaConsumer(ctx, cfg, notifier)

	var contents ghstore.Contents
	if cfg.GitHubToken != "" {
		contents = ghstore.NewGitHub(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch)
	} else {
		logrus.Warn("⚠️ GITHUB_TOKEN not set, events and trainings are kept in memory")
		contents = ghstore.NewMemory()
	}

	provider, err := payment.NewProvider(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("❌ Payment provider init failed")
	}

	var sheet sheets.Writer
	sheetClient, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	switch {
	case errors.Is(err, sheets.ErrNotConfigured):
		logrus.Info("ℹ️ Google Sheets export not configured")
	case err != nil:
		logrus.WithError(err).Warn("⚠️ Google Sheets export disabled")
	default:
		sheet = sheetClient
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	routes.Setup(router, cfg, routes.Dependencies{
		DB:       db,
		Redis:    redisClient,
		Contents: contents,
		Notifier: notifier,
		Provider: provider,
		Sheet:    sheet,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("🚀 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("❌ Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("🛑 Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("❌ Graceful shutdown failed")
	}
}
