package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/question-import-service/internal/cache"
	"github.com/exam-portal/question-import-service/internal/config"
	"github.com/exam-portal/question-import-service/internal/handlers"
	"github.com/exam-portal/question-import-service/internal/repositories/postgres"
	"github.com/exam-portal/question-import-service/internal/resolver"
	"github.com/exam-portal/question-import-service/internal/services"
	"github.com/exam-portal/question-import-service/internal/utils"
	"github.com/exam-portal/question-import-service/internal/validator"
	"github.com/exam-portal/question-import-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var appLogger utils.Logger
	if cfg.Environment == "production" {
		appLogger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		appLogger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(appLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := postgres.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	cacheService := cache.NewRedisCache(redisClient, slogger)

	repo := postgres.NewRepository(db)
	refResolver := resolver.New(repo.Reference(), cacheService, slogger)

	eventCfg := config.LoadEventConfig()
	publisher, err := eventCfg.CreateEventPublisher(slogger)
	if err != nil {
		log.Fatalf("failed to create event publisher: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Failed to close event publisher", "error", err)
		}
	}()

	v := validator.New()
	importService := services.NewImportService(repo, refResolver, publisher, cacheService, v, slogger)
	questionService := services.NewQuestionService(repo, slogger)
	exportService := services.NewExportService(repo, slogger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(appLogger))

	handlerManager := handlers.NewHandlerManager(importService, questionService, exportService, v, appLogger)
	handlerManager.SetupRoutes(router)

	appLogger.Info("Starting question import service",
		"port", cfg.Port,
		"environment", cfg.Environment)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
