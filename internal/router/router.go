package router

import (
	"net/http"

	"socialpulse/config"
	"socialpulse/internal/handler"
	"socialpulse/internal/middleware"
	"socialpulse/internal/repository"
	"socialpulse/internal/service"
	"socialpulse/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services are the hub's domain services, built over one database.
type Services struct {
	Notifications *service.NotificationService
	Activity      *service.ActivityService
}

// NewServices wires repositories, the event router and the services on top. push may
// be nil.
func NewServices(cfg *config.Config, db *gorm.DB, registry ws.Registry, push service.Pusher, log *zap.Logger) Services {
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	audienceRepo := repository.NewAudienceRepository(db)
	chatRepo := repository.NewChatRepository(db)

	eventRouter := ws.NewRouter(registry, log)
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, eventRouter, push, cfg.Hub, log)
	activitySvc := service.NewActivityService(audienceRepo, chatRepo, userRepo, notifSvc, log)
	return Services{Notifications: notifSvc, Activity: activitySvc}
}

// Handlers groups what Setup mounts.
type Handlers struct {
	Notifications handler.NotificationService
	Activity      handler.ActivityService
}

func Setup(cfg *config.Config, registry ws.Registry, h Handlers, limiter *middleware.InMemoryRateLimiter, log *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	notificationHandler := handler.NewNotificationHandler(h.Notifications, log)
	activityHandler := handler.NewActivityHandler(h.Activity, log)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": registry.Count()})
	})
	// The socket authenticates with ?token= since browsers cannot set headers on it.
	r.GET("/ws", ws.UpgradeNotificationsWS(&cfg.JWT, cfg.Hub, registry, log))

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(&cfg.JWT))
	if limiter != nil {
		api.Use(middleware.RateLimit(limiter))
	}
	{
		api.GET("/notifications", notificationHandler.List)
		api.GET("/notifications/unread", notificationHandler.Unread)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/notifications/read-all", notificationHandler.MarkAllRead)
		api.POST("/notifications/cleanup-expired", notificationHandler.CleanupExpired)
		api.PUT("/me/fcm-token", notificationHandler.UpdateFCMToken)

		api.POST("/conversations/:id/messages", activityHandler.SendMessage)
		api.POST("/groups/:id/activity", activityHandler.AnnounceGroupActivity)
		api.POST("/users/:id/follow", activityHandler.Follow)
		api.POST("/users/:id/notify", activityHandler.NotifyUser)
	}
	return r
}
