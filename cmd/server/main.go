// @title           Collaboration Service API
// @version         1.0
// @description     Real-time presence, activity and notification service for the dashboard

// @host      localhost:8004
// @BasePath  /api/collab

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"collab-service/internal/config"
	"collab-service/internal/database"
	"collab-service/internal/job"
	"collab-service/internal/repository"
	"collab-service/internal/router"
	"collab-service/internal/service"
	"collab-service/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Starting Collaboration Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("basePath", cfg.Server.BasePath),
		zap.String("env", cfg.Server.Env))

	// A slow database must not keep the pod from starting; retry in the
	// background and report not-ready until connected.
	db, err := database.NewDB(cfg)
	if err != nil {
		logger.Warn("Failed to connect to PostgreSQL on startup, will retry in background",
			zap.Error(err))
		database.NewAsync(cfg, 5*time.Second)
	} else {
		database.SetDB(db)
		logger.Info("PostgreSQL connected")
	}

	redisClient := database.NewRedis(cfg)
	if redisClient != nil {
		logger.Info("Redis connected")
	} else {
		logger.Warn("Redis not available, running without cache and event publication")
	}

	presenceRepo := repository.NewPresenceRepository(database.GetDB())
	activityRepo := repository.NewActivityRepository(database.GetDB())
	notificationRepo := repository.NewNotificationRepository(database.GetDB())

	presenceService := service.NewPresenceService(presenceRepo, redisClient, logger)
	activityService := service.NewActivityService(activityRepo, cfg.Collab.ActivityListLimit, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, logger)

	hub := ws.NewHub(
		presenceService,
		activityService,
		notificationService,
		time.Duration(cfg.Collab.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Collab.IdleTimeoutSeconds)*time.Second,
		logger,
	)
	go hub.Run(context.Background())

	c := cron.New()
	cleanupJob := job.NewCleanupJob(notificationService, cfg.Collab.CleanupDays, logger)
	if _, err := c.AddJob(cfg.Collab.CleanupSchedule, cleanupJob); err != nil {
		logger.Error("Failed to schedule cleanup job", zap.Error(err))
	} else {
		c.Start()
	}

	r := router.Setup(cfg, database.GetDB(), redisClient,
		presenceService, activityService, notificationService, hub, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Collaboration Service started", zap.String("address", addr))

	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
