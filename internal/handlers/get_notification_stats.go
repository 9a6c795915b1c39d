package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNotificationStats returns notification statistics
func (h *NotificationsHandler) GetNotificationStats(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx := c.Request.Context()
	devices, err := h.repo.ActiveDevices(ctx, uid)
	if err != nil {
		h.logError(c, err, "loading devices failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	unread, err := h.unreadCount(ctx, uid)
	if err != nil {
		h.logError(c, err, "counting unread notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	prefs, err := h.repo.GetPreferences(ctx, uid)
	if err != nil {
		h.logError(c, err, "loading preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	platforms := map[string]int{}
	for _, d := range devices {
		platforms[d.Platform]++
	}

	c.JSON(http.StatusOK, gin.H{
		"activeDevices": len(devices),
		"platforms":     platforms,
		"unreadCount":   unread,
		"pushEnabled":   prefs.Enabled,
	})
}
