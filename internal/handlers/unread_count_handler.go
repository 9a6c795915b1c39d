package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	models "io.winapps.huddle/internal/models/notifications"
)

const unreadCountTTL = time.Minute

func unreadCountKey(uid string) string {
	return fmt.Sprintf("unread_count:%s", uid)
}

// GetUnreadCount returns the caller's unread notification count
func (h *NotificationsHandler) GetUnreadCount(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	n, err := h.unreadCount(c.Request.Context(), uid)
	if err != nil {
		h.logError(c, err, "counting unread notifications failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load unread count"})
		return
	}
	c.JSON(http.StatusOK, models.UnreadCountResponse{UnreadCount: n})
}

// MarkAllRead clears the caller's unread notifications
func (h *NotificationsHandler) MarkAllRead(c *gin.Context) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx := c.Request.Context()
	n, err := h.repo.MarkAllRead(ctx, uid)
	if err != nil {
		h.logError(c, err, "marking notifications read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}
	h.invalidateUnreadCount(ctx, uid)
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// unreadCount reads through the Redis cache when one is configured.
func (h *NotificationsHandler) unreadCount(ctx context.Context, uid string) (int, error) {
	if h.redisClient != nil {
		if cached, err := h.redisClient.Get(ctx, unreadCountKey(uid)).Result(); err == nil {
			if n, err := strconv.Atoi(cached); err == nil {
				return n, nil
			}
		}
	}

	n, err := h.repo.UnreadCount(ctx, uid)
	if err != nil {
		return 0, err
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(ctx, unreadCountKey(uid), n, unreadCountTTL).Err(); err != nil {
			h.logger.Warnw("caching unread count failed", "user_uid", uid, "error", err)
		}
	}
	return n, nil
}

func (h *NotificationsHandler) invalidateUnreadCount(ctx context.Context, uid string) {
	if h.redisClient == nil {
		return
	}
	if err := h.redisClient.Del(ctx, unreadCountKey(uid)).Err(); err != nil {
		h.logger.Warnw("invalidating unread count failed", "user_uid", uid, "error", err)
	}
}
