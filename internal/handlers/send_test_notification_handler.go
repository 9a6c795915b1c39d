package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	models "io.winapps.huddle/internal/models/notifications"
	"io.winapps.huddle/internal/notify"
)

var defaultCopy = map[notify.Kind][2]string{
	notify.KindGeneral:         {"Huddle", "You have a new notification"},
	notify.KindFriendRequest:   {"New friend request", "Someone wants to connect with you"},
	notify.KindFriendAccepted:  {"Friend request accepted", "You have a new friend"},
	notify.KindEventUpdate:     {"Event updated", "An event you joined has changed"},
	notify.KindEventReminder:   {"Event reminder", "Your event starts soon"},
	notify.KindEventInvitation: {"You're invited", "You have a new event invitation"},
	notify.KindEventRoster:     {"Roster update", "Someone joined your event"},
	notify.KindCommunityNote:   {"New community note", "There is a new post in your community"},
	notify.KindVenueUpdate:     {"Venue update", "A venue you follow has news"},
	notify.KindSpaceUpdate:     {"Space update", "A space you follow has changed"},
}

// SendTestNotification records a notification for the caller and pushes it
// to every active device, unless the caller's preferences mute its category.
func (h *NotificationsHandler) SendTestNotification(c *gin.Context) {
	var req models.TestNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	kind, _ := notify.ParseKind(req.Type)
	ctx := c.Request.Context()

	prefs, err := h.repo.GetPreferences(ctx, uid)
	if err != nil {
		h.logError(c, err, "loading preferences failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
		return
	}
	if !toSettings(prefs).Allows(kind) {
		h.metrics.PushSent(req.Type, "suppressed")
		c.JSON(http.StatusOK, gin.H{"suppressed": true, "sent": 0})
		return
	}

	title, body := req.Title, req.Body
	if title == "" {
		title = defaultCopy[kind][0]
	}
	if body == "" {
		body = defaultCopy[kind][1]
	}
	data := make(map[string]string, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	data["type"] = req.Type

	id, err := h.repo.CreateNotification(ctx, models.Notification{
		UserID: uid,
		Type:   req.Type,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		h.logError(c, err, "recording notification failed", "type", req.Type)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}
	h.invalidateUnreadCount(ctx, uid)
	data["notificationId"] = id

	badge, err := h.unreadCount(ctx, uid)
	if err != nil {
		h.logger.Warnw("unread count for badge failed", "user_uid", uid, "error", err)
	}

	devices, err := h.repo.ActiveDevices(ctx, uid)
	if err != nil {
		h.logError(c, err, "loading devices failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load devices"})
		return
	}

	sent, failed := 0, 0
	if h.sender != nil {
		for _, d := range devices {
			_, err := h.sender.Send(ctx, models.Push{
				Token:     d.DeviceToken,
				Title:     title,
				Body:      body,
				Data:      data,
				ChannelID: string(kind.Category()),
				Badge:     badge,
			})
			switch {
			case err == nil:
				sent++
				h.metrics.PushSent(req.Type, "sent")
			case errors.Is(err, models.ErrStaleDeviceToken):
				failed++
				h.metrics.PushSent(req.Type, "stale")
				if derr := h.repo.DeactivateToken(ctx, d.DeviceToken); derr != nil {
					h.logError(c, derr, "deactivating stale token failed")
				}
			default:
				failed++
				h.metrics.PushSent(req.Type, "failed")
				h.logError(c, err, "push delivery failed", "type", req.Type, "platform", d.Platform)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"sent":    sent,
		"failed":  failed,
		"devices": len(devices),
	})
}

func toSettings(p models.Preferences) notify.Settings {
	return notify.Settings{
		Enabled:        p.Enabled,
		FriendRequests: p.FriendRequests,
		EventUpdates:   p.EventUpdates,
		EventReminders: p.EventReminders,
		CommunityNotes: p.CommunityNotes,
	}
}
