package db

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	models "io.winapps.huddle/internal/models/notifications"
)

// MemoryRepository is a process-local repository for development and tests.
type MemoryRepository struct {
	mu            sync.Mutex
	sessions      map[string]string
	devices       map[string]*models.DeviceRegistration
	preferences   map[string]models.Preferences
	notifications []models.Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions:    make(map[string]string),
		devices:     make(map[string]*models.DeviceRegistration),
		preferences: make(map[string]models.Preferences),
	}
}

// AddSession makes token authenticate as userID.
func (r *MemoryRepository) AddSession(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = userID
}

func (r *MemoryRepository) UserIDForSession(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid, ok := r.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	return uid, nil
}

func (r *MemoryRepository) UpsertDevice(ctx context.Context, d models.DeviceRegistration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if existing, ok := r.devices[d.DeviceToken]; ok {
		existing.UserID = d.UserID
		existing.Platform = d.Platform
		existing.DeviceType = d.DeviceType
		existing.Active = true
		existing.UpdatedAt = now
		return existing.ID, nil
	}
	d.ID = uuid.New().String()
	d.Active = true
	d.CreatedAt = now
	d.UpdatedAt = now
	r.devices[d.DeviceToken] = &d
	return d.ID, nil
}

func (r *MemoryRepository) DeactivateDevices(ctx context.Context, userID, deviceToken string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.devices {
		if d.UserID != userID || !d.Active {
			continue
		}
		if deviceToken != "" && d.DeviceToken != deviceToken {
			continue
		}
		d.Active = false
		d.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (r *MemoryRepository) DeactivateToken(ctx context.Context, deviceToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[deviceToken]; ok {
		d.Active = false
	}
	return nil
}

func (r *MemoryRepository) ActiveDevices(ctx context.Context, userID string) ([]models.DeviceRegistration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DeviceRegistration
	for _, d := range r.devices {
		if d.UserID == userID && d.Active {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.preferences[userID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(), nil
}

func (r *MemoryRepository) SavePreferences(ctx context.Context, userID string, p models.Preferences) (models.Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.UpdatedAt = time.Now()
	r.preferences[userID] = p
	return p, nil
}

func (r *MemoryRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.notifications {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CreateNotification(ctx context.Context, n models.Notification) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, n)
	return n.ID, nil
}

func (r *MemoryRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.notifications {
		if r.notifications[i].UserID == userID && !r.notifications[i].Read {
			r.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}
