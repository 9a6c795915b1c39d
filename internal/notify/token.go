package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TokenManager owns the current device token: it acquires it from the
// transport, mirrors it to local storage and keeps the backend registration
// up to date across refreshes, logins and logouts.
type TokenManager struct {
	transport PushTransport
	store     KeyValueStore
	session   SessionSource
	backend   Backend
	device    Device
	status    func(context.Context) AuthorizationState
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	current *DeviceToken
}

// TokenManagerConfig groups the collaborators of a TokenManager.
type TokenManagerConfig struct {
	Transport PushTransport
	Store     KeyValueStore
	Session   SessionSource
	Backend   Backend
	Device    Device
	// Status reports the current permission state, used by
	// EnsureTokenRegistered when no token is cached.
	Status func(context.Context) AuthorizationState
	Logger *zap.SugaredLogger
}

func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	return &TokenManager{
		transport: cfg.Transport,
		store:     cfg.Store,
		session:   cfg.Session,
		backend:   cfg.Backend,
		device:    cfg.Device,
		status:    cfg.Status,
		logger:    orNop(cfg.Logger),
	}
}

// CurrentToken returns the cached token, if any.
func (m *TokenManager) CurrentToken() (DeviceToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return DeviceToken{}, false
	}
	return *m.current, true
}

// LoadCached restores the token persisted by a previous run.
func (m *TokenManager) LoadCached(ctx context.Context) (DeviceToken, bool) {
	raw, ok, err := m.store.Get(ctx, KeyDeviceToken)
	if err != nil {
		m.logger.Warnw("reading cached device token failed", "error", err)
		return DeviceToken{}, false
	}
	if !ok || raw == "" {
		return DeviceToken{}, false
	}

	var tok DeviceToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil || tok.Value == "" {
		// Older installs stored the bare token string.
		tok = DeviceToken{Value: raw, Platform: m.device.Platform, Transport: TransportFCM}
	}

	m.mu.Lock()
	m.current = &tok
	m.mu.Unlock()
	return tok, true
}

// GetAndRegisterToken acquires a token from the transport, caches it and
// registers it with the backend. It returns nil when the transport fails;
// a backend failure still returns the (cached) token.
func (m *TokenManager) GetAndRegisterToken(ctx context.Context) *DeviceToken {
	if m.device.Platform == PlatformIOS {
		apns, err := m.transport.APNSToken(ctx)
		switch {
		case err != nil:
			m.logger.Warnw("APNs token unavailable, requesting push token anyway", "error", err)
		case apns == "":
			m.logger.Warnw("APNs token not yet issued, requesting push token anyway")
		default:
			m.logger.Debugw("APNs token present")
		}
	}

	value, err := m.transport.Token(ctx)
	if err != nil {
		m.logger.Errorw("fetching push token failed", "error", err)
		return nil
	}
	if value == "" {
		m.logger.Errorw("push transport returned an empty token")
		return nil
	}

	tok := DeviceToken{Value: value, Platform: m.device.Platform, Transport: TransportFCM}
	m.cache(ctx, tok)

	if err := m.RegisterWithBackend(ctx, tok); err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Warnw("device registration failed, token kept for retry", "error", err)
	}
	return &tok
}

// RegisterWithBackend posts tok to the backend. It returns ErrNoSession
// without calling the backend when nobody is signed in.
func (m *TokenManager) RegisterWithBackend(ctx context.Context, tok DeviceToken) error {
	session, err := m.session.SessionToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			m.logger.Debugw("no session, device registration deferred")
			return ErrNoSession
		}
		return fmt.Errorf("reading session token: %w", err)
	}

	err = m.backend.RegisterDevice(ctx, session, RegisterDeviceRequest{
		DeviceToken: tok.Value,
		Platform:    tok.Platform,
		DeviceType:  m.device.Type,
	})
	if err != nil {
		return fmt.Errorf("registering device: %w", err)
	}

	m.logger.Infow("device registered", "platform", tok.Platform)
	return nil
}

// EnsureTokenRegistered runs after sign-in. A cached token is re-posted
// (permission may have been granted before login); otherwise a fresh token
// is acquired when permission allows it.
func (m *TokenManager) EnsureTokenRegistered(ctx context.Context) {
	tok, ok := m.CurrentToken()
	if !ok {
		tok, ok = m.LoadCached(ctx)
	}
	if ok {
		if err := m.RegisterWithBackend(ctx, tok); err != nil {
			m.logger.Warnw("re-registering cached token failed", "error", err)
		}
		return
	}

	if m.status == nil || !m.status(ctx).Enabled() {
		m.logger.Debugw("no cached token and notifications not permitted")
		return
	}
	m.GetAndRegisterToken(ctx)
}

// HandleTokenRefresh replaces the cached token with value and registers it.
// The transport may call this any number of times per session.
func (m *TokenManager) HandleTokenRefresh(ctx context.Context, value string) {
	if value == "" {
		return
	}
	tok := DeviceToken{Value: value, Platform: m.device.Platform, Transport: TransportFCM}
	m.cache(ctx, tok)
	m.logger.Infow("push token refreshed")

	if err := m.RegisterWithBackend(ctx, tok); err != nil && !errors.Is(err, ErrNoSession) {
		m.logger.Warnw("registering refreshed token failed", "error", err)
	}
}

// UnregisterDevice runs on logout. The backend call and transport reset are
// best-effort; the local cache is always cleared. A device without a token
// has no server-side registration, so the backend is not called.
func (m *TokenManager) UnregisterDevice(ctx context.Context) {
	tok, hasToken := m.CurrentToken()
	if !hasToken {
		tok, hasToken = m.LoadCached(ctx)
	}

	if hasToken {
		if session, err := m.session.SessionToken(ctx); err == nil {
			if err := m.backend.UnregisterDevice(ctx, session, tok.Value); err != nil {
				m.logger.Warnw("unregistering device failed", "error", err)
			}
		} else if !errors.Is(err, ErrNoSession) {
			m.logger.Warnw("reading session token failed", "error", err)
		}

		if err := m.transport.DeleteToken(ctx); err != nil {
			m.logger.Warnw("deleting transport token failed", "error", err)
		}
	} else {
		m.logger.Debugw("no device token, skipping backend unregister")
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	if err := m.store.Delete(ctx, KeyDeviceToken); err != nil {
		m.logger.Errorw("clearing cached device token failed", "error", err)
	}
}

// cache sets the in-memory token and persists it. Persistence failures are
// logged; the in-memory value still wins for this process.
func (m *TokenManager) cache(ctx context.Context, tok DeviceToken) {
	m.mu.Lock()
	m.current = &tok
	m.mu.Unlock()

	raw, err := json.Marshal(tok)
	if err != nil {
		m.logger.Errorw("encoding device token failed", "error", err)
		return
	}
	if err := m.store.Set(ctx, KeyDeviceToken, string(raw)); err != nil {
		m.logger.Errorw("persisting device token failed", "error", err)
	}
}
