package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	models "io.winapps.huddle/internal/models/notifications"
)

// RegisterDevice upserts the caller's device token
func (h *NotificationsHandler) RegisterDevice(c *gin.Context) {
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := h.repo.UpsertDevice(c.Request.Context(), models.DeviceRegistration{
		UserID:      uid,
		DeviceToken: req.DeviceToken,
		Platform:    req.Platform,
		DeviceType:  req.DeviceType,
	})
	if err != nil {
		h.logError(c, err, "saving device registration failed", "platform", req.Platform)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	h.metrics.DeviceRegistration("register", req.Platform)
	h.logInfo(c, "device registered", "platform", req.Platform, "device_type", req.DeviceType)
	c.JSON(http.StatusOK, gin.H{
		"message": "Device registered successfully",
		"id":      id,
	})
}

// UnregisterDevice deactivates one token of the caller, or all of them when
// allDevices is set.
func (h *NotificationsHandler) UnregisterDevice(c *gin.Context) {
	var req models.UnregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.DeviceToken == "") == !req.AllDevices {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one of deviceToken or allDevices is required"})
		return
	}

	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	n, err := h.repo.DeactivateDevices(c.Request.Context(), uid, req.DeviceToken)
	if err != nil {
		h.logError(c, err, "deactivating devices failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unregister device"})
		return
	}

	h.metrics.DeviceRegistration("unregister", "")
	c.JSON(http.StatusOK, gin.H{
		"message":     "Device unregistered",
		"deactivated": n,
	})
}
