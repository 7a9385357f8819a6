package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"collab-service/internal/config"
	"collab-service/internal/handler"
	"collab-service/internal/middleware"
	"collab-service/internal/service"
	"collab-service/internal/ws"
)

func Setup(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	presenceService *service.PresenceService,
	activityService *service.ActivityService,
	notificationService *service.NotificationService,
	hub *ws.Hub,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Metrics())

	presenceHandler := handler.NewPresenceHandler(presenceService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes with base path
	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// Socket upgrade path, distinct from every REST path
		api.GET("/ws/collaboration", hub.HandleWebSocket)

		api.GET("/presence/:page", presenceHandler.GetPagePresence)
		api.POST("/presence", presenceHandler.UpsertPresence)

		api.GET("/activities", activityHandler.ListActivities)
		api.POST("/activities", activityHandler.AppendActivity)

		api.GET("/notifications/:userId", notificationHandler.ListNotifications)
		api.PATCH("/notifications/:userId/read", notificationHandler.MarkNotificationsRead)
		api.GET("/notifications/:userId/unread-count", notificationHandler.GetUnreadCount)
	}

	return r
}
