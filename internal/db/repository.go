// Package db holds the persistence layer of the notification backend: the
// Postgres and Redis bootstrap plus the repository the handlers use.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	models "io.winapps.huddle/internal/models/notifications"
)

// ErrSessionNotFound is returned when no user owns a session token.
var ErrSessionNotFound = errors.New("session not found")

// PostgresRepository implements the handler and middleware storage
// interfaces on a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) UserIDForSession(ctx context.Context, token string) (string, error) {
	var uid string
	err := r.pool.QueryRow(ctx, `SELECT uid FROM users WHERE token = $1`, token).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	return uid, nil
}

// UpsertDevice registers d.DeviceToken for d.UserID, reactivating it and
// moving it over from any previous owner.
func (r *PostgresRepository) UpsertDevice(ctx context.Context, d models.DeviceRegistration) (string, error) {
	query := `
		INSERT INTO device_registrations (user_id, device_token, platform, device_type, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (device_token)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			device_type = EXCLUDED.device_type,
			active = TRUE,
			updated_at = NOW()
		RETURNING id`

	var id string
	if err := r.pool.QueryRow(ctx, query, d.UserID, d.DeviceToken, d.Platform, d.DeviceType).Scan(&id); err != nil {
		return "", fmt.Errorf("upserting device: %w", err)
	}
	return id, nil
}

// DeactivateDevices deactivates one token of userID, or all of them when
// deviceToken is empty.
func (r *PostgresRepository) DeactivateDevices(ctx context.Context, userID, deviceToken string) (int64, error) {
	query := `UPDATE device_registrations SET active = FALSE, updated_at = NOW() WHERE user_id = $1 AND active = TRUE`
	args := []interface{}{userID}
	if deviceToken != "" {
		query += ` AND device_token = $2`
		args = append(args, deviceToken)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivating devices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateToken drops a token the push provider no longer accepts.
func (r *PostgresRepository) DeactivateToken(ctx context.Context, deviceToken string) error {
	_, err := r.pool.Exec(ctx, `UPDATE device_registrations SET active = FALSE, updated_at = NOW() WHERE device_token = $1`, deviceToken)
	if err != nil {
		return fmt.Errorf("deactivating token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ActiveDevices(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	query := `
		SELECT id, user_id, device_token, platform, device_type, active, created_at, updated_at
		FROM device_registrations
		WHERE user_id = $1 AND active = TRUE
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceRegistration
	for rows.Next() {
		var d models.DeviceRegistration
		if err := rows.Scan(&d.ID, &d.UserID, &d.DeviceToken, &d.Platform, &d.DeviceType, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// GetPreferences returns the stored preferences or the all-enabled default.
func (r *PostgresRepository) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	query := `
		SELECT enabled, friend_requests, event_updates, event_reminders, community_notes, updated_at
		FROM notification_preferences
		WHERE user_id = $1`

	var p models.Preferences
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.Enabled, &p.FriendRequests, &p.EventUpdates, &p.EventReminders, &p.CommunityNotes, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultPreferences(), nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("querying preferences: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) SavePreferences(ctx context.Context, userID string, p models.Preferences) (models.Preferences, error) {
	query := `
		INSERT INTO notification_preferences (user_id, enabled, friend_requests, event_updates, event_reminders, community_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			enabled = EXCLUDED.enabled,
			friend_requests = EXCLUDED.friend_requests,
			event_updates = EXCLUDED.event_updates,
			event_reminders = EXCLUDED.event_reminders,
			community_notes = EXCLUDED.community_notes,
			updated_at = NOW()
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, userID, p.Enabled, p.FriendRequests, p.EventUpdates, p.EventReminders, p.CommunityNotes).Scan(&p.UpdatedAt)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("saving preferences: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CreateNotification(ctx context.Context, n models.Notification) (string, error) {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, title, body, data) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.UserID, n.Type, n.Title, n.Body, data,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting notification: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
