package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Dependencies are the platform collaborators of a Service.
type Dependencies struct {
	Transport PushTransport
	Local     LocalNotifier
	Store     KeyValueStore
	Session   SessionSource
	Backend   Backend
	Device    Device
	// Alerter is optional.
	Alerter Alerter
	// BadgeRefresh is a cron spec for periodic badge reconciliation, such
	// as "@every 5m". Empty disables it.
	BadgeRefresh string
	Logger       *zap.SugaredLogger
}

// State is a snapshot of what the screen layer observes.
type State struct {
	PermissionStatus AuthorizationState
	HasPermission    bool
	Settings         Settings
	BadgeCount       int
	Initialized      bool
}

// Service is the process-wide notification context. Build one at process
// start, pass it to the screen layer, and Close it on shutdown.
type Service struct {
	gate       *PermissionGate
	tokens     *TokenManager
	router     *Router
	dispatcher *Dispatcher
	settings   *SettingsStore

	transport    PushTransport
	alerter      Alerter
	badgeRefresh string
	logger       *zap.SugaredLogger

	initialized atomic.Bool
	refreshMu   sync.Mutex

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	subs      []Unsubscribe
	scheduler *cron.Cron
	listeners map[int]func(State)
	nextID    int
}

func NewService(deps Dependencies) *Service {
	logger := orNop(deps.Logger)
	session := deps.Session
	if session == nil {
		session = KVSession{Store: deps.Store}
	}

	gate := NewPermissionGate(deps.Transport, deps.Local, logger.Named("permission"))
	dispatcher := NewDispatcher(logger.Named("dispatch"))
	settings := NewSettingsStore(deps.Store, session, deps.Backend, deps.Local, logger.Named("settings"))
	tokens := NewTokenManager(TokenManagerConfig{
		Transport: deps.Transport,
		Store:     deps.Store,
		Session:   session,
		Backend:   deps.Backend,
		Device:    deps.Device,
		Status:    gate.CheckStatus,
		Logger:    logger.Named("token"),
	})
	router := NewRouter(deps.Transport, deps.Local, dispatcher, settings.Settings, logger.Named("router"))

	s := &Service{
		gate:         gate,
		tokens:       tokens,
		router:       router,
		dispatcher:   dispatcher,
		settings:     settings,
		transport:    deps.Transport,
		alerter:      deps.Alerter,
		badgeRefresh: deps.BadgeRefresh,
		logger:       logger,
		listeners:    make(map[int]func(State)),
	}
	gate.OnGranted(func(ctx context.Context) {
		tokens.GetAndRegisterToken(ctx)
	})
	return s
}

// Start initializes the subsystem: settings, permission status, token,
// event subscriptions, the cold-start notification and the badge. ctx must
// live as long as the app; Close cancels the context handed to callbacks.
//
// Start always leaves the Service initialized, even when a step fails.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Errorw("notification initialization panicked", "panic", fmt.Sprint(p))
		}
		s.initialized.Store(true)
		s.logger.Infow("notifications initialized",
			"permission", s.gate.State().String(), "badge", s.settings.BadgeCount())
		s.publish()
	}()

	s.settings.Load(ctx)

	s.tokens.LoadCached(ctx)
	if s.gate.CheckStatus(ctx).Enabled() {
		s.tokens.GetAndRegisterToken(ctx)
	}

	unsub := s.transport.OnTokenRefresh(func(token string) {
		s.refreshMu.Lock()
		defer s.refreshMu.Unlock()
		s.tokens.HandleTokenRefresh(ctx, token)
	})
	s.mu.Lock()
	s.subs = append(s.subs, unsub)
	s.mu.Unlock()

	s.router.Start(ctx)
	s.settings.ReconcileBadge(ctx)
	s.startBadgeRefresh(ctx)
}

// Close unsubscribes from every event source and stops background jobs.
func (s *Service) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	scheduler := s.scheduler
	s.scheduler = nil
	cancel := s.cancel
	s.mu.Unlock()

	s.router.Close()
	for _, unsub := range subs {
		if unsub != nil {
			unsub()
		}
	}
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Service) startBadgeRefresh(ctx context.Context) {
	if s.badgeRefresh == "" {
		return
	}
	c := cron.New()
	_, err := c.AddFunc(s.badgeRefresh, func() {
		s.settings.ReconcileBadge(ctx)
		s.publish()
	})
	if err != nil {
		s.logger.Errorw("invalid badge refresh schedule", "schedule", s.badgeRefresh, "error", err)
		return
	}
	c.Start()

	s.mu.Lock()
	s.scheduler = c
	s.mu.Unlock()
}

// PermissionStatus returns the last observed authorization state.
func (s *Service) PermissionStatus() AuthorizationState { return s.gate.State() }

// HasPermission reports whether notifications are currently enabled.
func (s *Service) HasPermission() bool { return s.gate.State().Enabled() }

func (s *Service) Settings() Settings { return s.settings.Settings() }

func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) Settings {
	merged := s.settings.UpdateSettings(ctx, patch)
	s.publish()
	return merged
}

// RequestPermission asks the user for permission. A refusal shows the
// permission-denied alert when an Alerter is configured.
func (s *Service) RequestPermission(ctx context.Context) bool {
	granted := s.gate.RequestPermission(ctx)
	if !granted && s.alerter != nil {
		s.alerter.PermissionDenied()
	}
	s.publish()
	return granted
}

// CheckPermission re-reads the OS authorization state. Permission turned on
// since the last check acquires and registers a token.
func (s *Service) CheckPermission(ctx context.Context) AuthorizationState {
	state := s.gate.Recheck(ctx)
	s.publish()
	return state
}

func (s *Service) BadgeCount() int { return s.settings.BadgeCount() }

func (s *Service) SetBadgeCount(ctx context.Context, n int) {
	s.settings.SetBadgeCount(ctx, n)
	s.publish()
}

func (s *Service) ClearBadge(ctx context.Context) {
	s.settings.ClearBadge(ctx)
	s.publish()
}

// RefreshBadge re-fetches the unread count from the backend.
func (s *Service) RefreshBadge(ctx context.Context) int {
	n := s.settings.ReconcileBadge(ctx)
	s.publish()
	return n
}

func (s *Service) IsInitialized() bool { return s.initialized.Load() }

// SetNavigationRef registers the screen layer's navigation callback and
// flushes any notification that arrived before it. nil detaches it.
func (s *Service) SetNavigationRef(fn NavigateFunc) {
	s.dispatcher.RegisterNavigationCallback(fn)
}

// HandleNotificationData routes a payload that reached the app through some
// other channel (e.g. an in-app deep link).
func (s *Service) HandleNotificationData(data map[string]string) {
	s.dispatcher.HandleNotificationData(NewRecord(data))
}

// OnAuthenticated makes sure the device is registered for the new session
// and refreshes the badge.
func (s *Service) OnAuthenticated(ctx context.Context) {
	s.tokens.EnsureTokenRegistered(ctx)
	s.settings.ReconcileBadge(ctx)
	s.publish()
}

// OnLogout unregisters the device and clears the badge. Call it before the
// session token is discarded.
func (s *Service) OnLogout(ctx context.Context) {
	s.tokens.UnregisterDevice(ctx)
	s.settings.ClearBadge(ctx)
	s.publish()
}

// CurrentToken exposes the cached device token.
func (s *Service) CurrentToken() (DeviceToken, bool) { return s.tokens.CurrentToken() }

// Snapshot returns the current observable state.
func (s *Service) Snapshot() State {
	perm := s.gate.State()
	return State{
		PermissionStatus: perm,
		HasPermission:    perm.Enabled(),
		Settings:         s.settings.Settings(),
		BadgeCount:       s.settings.BadgeCount(),
		Initialized:      s.initialized.Load(),
	}
}

// Subscribe calls fn with a fresh snapshot after every state change. The
// returned func removes the listener.
func (s *Service) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) publish() {
	s.mu.Lock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	st := s.Snapshot()
	for _, fn := range fns {
		fn(st)
	}
}
