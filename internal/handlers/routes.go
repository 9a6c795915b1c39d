package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"io.winapps.huddle/internal/metrics"
	"io.winapps.huddle/internal/middleware"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Notifications *NotificationsHandler
	Auth          gin.HandlerFunc
	Metrics       *metrics.Metrics
	Logger        *zap.SugaredLogger
}

// NewRouter builds the gin engine of the notification backend.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router := gin.New()
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.RequestLoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	notifications := router.Group("/api/notifications")
	notifications.Use(cfg.Auth)
	{
		h := cfg.Notifications
		notifications.POST("/register-device", h.RegisterDevice)
		notifications.POST("/unregister-device", h.UnregisterDevice)
		notifications.GET("/preferences", h.GetPreferences)
		notifications.PUT("/preferences", h.UpdatePreferences)
		notifications.GET("/unread-count", h.GetUnreadCount)
		notifications.POST("/read-all", h.MarkAllRead)
		notifications.POST("/test", h.SendTestNotification)
		notifications.GET("/stats", h.GetNotificationStats)
	}

	return router
}
