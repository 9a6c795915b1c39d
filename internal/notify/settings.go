package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// SettingsStore persists notification category toggles and keeps the badge
// counter in line with the backend's unread count.
type SettingsStore struct {
	store   KeyValueStore
	session SessionSource
	backend Backend
	local   LocalNotifier
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	settings Settings
	badge    int
}

func NewSettingsStore(store KeyValueStore, session SessionSource, backend Backend, local LocalNotifier, logger *zap.SugaredLogger) *SettingsStore {
	return &SettingsStore{
		store:    store,
		session:  session,
		backend:  backend,
		local:    local,
		logger:   orNop(logger),
		settings: DefaultSettings(),
	}
}

// Load reads persisted settings over the defaults. Keys missing from the
// stored document keep their default value.
func (s *SettingsStore) Load(ctx context.Context) Settings {
	loaded := DefaultSettings()

	raw, ok, err := s.store.Get(ctx, KeySettings)
	switch {
	case err != nil:
		s.logger.Warnw("reading notification settings failed", "error", err)
	case ok && raw != "":
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			s.logger.Warnw("stored notification settings unreadable, using defaults", "error", err)
			loaded = DefaultSettings()
		}
	}

	s.mu.Lock()
	s.settings = loaded
	s.mu.Unlock()
	return loaded
}

// Settings returns the current settings.
func (s *SettingsStore) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings merges patch into the current settings, persists the result
// and pushes it to the backend. A failed push does not roll back the merge.
func (s *SettingsStore) UpdateSettings(ctx context.Context, patch SettingsPatch) Settings {
	s.mu.Lock()
	merged := patch.Apply(s.settings)
	s.settings = merged
	s.mu.Unlock()

	if raw, err := json.Marshal(merged); err != nil {
		s.logger.Errorw("encoding notification settings failed", "error", err)
	} else if err := s.store.Set(ctx, KeySettings, string(raw)); err != nil {
		s.logger.Errorw("persisting notification settings failed", "error", err)
	}

	session, err := s.session.SessionToken(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.logger.Warnw("reading session token failed", "error", err)
		}
		return merged
	}
	if err := s.backend.UpdatePreferences(ctx, session, merged); err != nil {
		s.logger.Warnw("syncing notification preferences failed", "error", err)
	}
	return merged
}

// BadgeCount returns the locally known badge count.
func (s *SettingsStore) BadgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badge
}

// ReconcileBadge sets the badge from the backend's unread count. When the
// backend cannot be asked (no session, network error, non-2xx) the OS badge
// value is adopted instead, without writing it back.
func (s *SettingsStore) ReconcileBadge(ctx context.Context) int {
	count, err := s.fetchUnread(ctx)
	if err == nil {
		s.setLocal(count)
		if err := s.local.SetBadgeCount(ctx, count); err != nil {
			s.logger.Warnw("setting OS badge failed", "error", err)
		}
		return count
	}

	if !errors.Is(err, ErrNoSession) {
		s.logger.Warnw("fetching unread count failed, using OS badge", "error", err)
	}
	osCount, osErr := s.local.BadgeCount(ctx)
	if osErr != nil {
		s.logger.Warnw("reading OS badge failed", "error", osErr)
		return s.BadgeCount()
	}
	s.setLocal(osCount)
	return s.BadgeCount()
}

// SetBadgeCount sets both the OS badge and the local value. Negative counts
// are clamped to zero.
func (s *SettingsStore) SetBadgeCount(ctx context.Context, n int) {
	s.setLocal(n)
	if err := s.local.SetBadgeCount(ctx, s.BadgeCount()); err != nil {
		s.logger.Warnw("setting OS badge failed", "error", err)
	}
}

// ClearBadge zeroes the OS and local badge. The backend unread count is
// left alone and reconciled on the next fetch.
func (s *SettingsStore) ClearBadge(ctx context.Context) {
	s.SetBadgeCount(ctx, 0)
}

func (s *SettingsStore) fetchUnread(ctx context.Context) (int, error) {
	session, err := s.session.SessionToken(ctx)
	if err != nil {
		return 0, err
	}
	return s.backend.UnreadCount(ctx, session)
}

func (s *SettingsStore) setLocal(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.badge = n
	s.mu.Unlock()
}
