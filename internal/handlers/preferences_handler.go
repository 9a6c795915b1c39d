package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	models "io.winapps.huddle/internal/models/notifications"
)

func (h *NotificationsHandler) GetPreferences(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	prefs, err := h.repo.GetPreferences(c.Request.Context(), uid)
	if err != nil {
		h.logError(c, err, "loading preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences merges the supplied toggles over the stored ones, so a
// client may send either the full settings object or only changed keys.
func (h *NotificationsHandler) UpdatePreferences(c *gin.Context) {
	var req models.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx := c.Request.Context()
	current, err := h.repo.GetPreferences(ctx, uid)
	if err != nil {
		h.logError(c, err, "loading preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}

	saved, err := h.repo.SavePreferences(ctx, uid, req.Apply(current))
	if err != nil {
		h.logError(c, err, "saving preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, saved)
}
