package main

import (
	"log"
	"time"

	"github.com/classforge/attempt-service/internal/attempt"
	"github.com/classforge/attempt-service/internal/cache"
	"github.com/classforge/attempt-service/internal/config"
	"github.com/classforge/attempt-service/internal/events"
	"github.com/classforge/attempt-service/internal/handlers"
	"github.com/classforge/attempt-service/internal/services"
	"github.com/classforge/attempt-service/internal/session"
	"github.com/classforge/attempt-service/internal/store"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/classforge/attempt-service/internal/validator"
	"github.com/classforge/attempt-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %s", err)
	}

	gormStore := store.NewGormStore(db, logger)
	if err := gormStore.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate database: %s", err)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %s", err)
	}
	defer redisClient.Close()

	definitionCache := cache.NewEvaluationCache(
		redisClient,
		logger,
		time.Duration(cfg.EvaluationCacheTTL)*time.Second,
	)

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		publisher = events.NewMockEventPublisher(utils.ToSlogLogger(logger))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	sessions := session.NewCasdoorSession(session.Config{
		Endpoint:     cfg.CasdoorEndpoint,
		ClientID:     cfg.CasdoorClientID,
		ClientSecret: cfg.CasdoorClientSecret,
		Certificate:  cfg.CasdoorCertificate,
		Organization: cfg.CasdoorOrganization,
		Application:  cfg.CasdoorApplication,
	}, logger)

	loader := attempt.NewLoader(gormStore, definitionCache, publisher, logger)
	registry := attempt.NewRegistry()
	reports := services.NewReportService(gormStore, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	manager := handlers.NewHandlerManager(loader, registry, sessions, reports, validator.New(), logger)
	manager.SetupRoutes(router)

	logger.Info("Attempt service listening", "port", cfg.Port, "environment", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %s", err)
	}
}
