package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"io.winapps.huddle/internal/metrics"
	models "io.winapps.huddle/internal/models/notifications"
)

// Repository is the storage the notification endpoints need.
type Repository interface {
	UpsertDevice(ctx context.Context, d models.DeviceRegistration) (string, error)
	DeactivateDevices(ctx context.Context, userID, deviceToken string) (int64, error)
	DeactivateToken(ctx context.Context, deviceToken string) error
	ActiveDevices(ctx context.Context, userID string) ([]models.DeviceRegistration, error)
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p models.Preferences) (models.Preferences, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	CreateNotification(ctx context.Context, n models.Notification) (string, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Sender delivers one push to one device.
type Sender interface {
	Send(ctx context.Context, p models.Push) (string, error)
}

type NotificationsHandler struct {
	repo        Repository
	sender      Sender
	redisClient *redis.Client
	metrics     *metrics.Metrics
	logger      *zap.SugaredLogger
}

// NewNotificationsHandler wires the handler. sender, redisClient and m may
// be nil: without a sender test pushes are recorded but not delivered, and
// without Redis unread counts are read straight from the repository.
func NewNotificationsHandler(repo Repository, sender Sender, redisClient *redis.Client, m *metrics.Metrics, logger *zap.SugaredLogger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &NotificationsHandler{
		repo:        repo,
		sender:      sender,
		redisClient: redisClient,
		metrics:     m,
		logger:      logger,
	}
}
