package notify

import (
	"context"
	"errors"
	"sync"
)

type fakeTransport struct {
	mu sync.Mutex

	requestResult AuthorizationState
	requestErr    error
	requestCalls  int

	apnsToken  string
	apnsErr    error
	token      string
	tokenErr   error
	tokenCalls int
	deleted    int

	initial      *RemoteMessage
	initialErr   error
	initialCalls int

	onMessage []func(RemoteMessage)
	onOpened  []func(RemoteMessage)
	onRefresh []func(string)
	unsubbed  int
}

func (f *fakeTransport) RequestPermission(ctx context.Context) (AuthorizationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestCalls++
	return f.requestResult, f.requestErr
}

func (f *fakeTransport) APNSToken(ctx context.Context) (string, error) {
	return f.apnsToken, f.apnsErr
}

func (f *fakeTransport) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.token, f.tokenErr
}

func (f *fakeTransport) DeleteToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeTransport) InitialNotification(ctx context.Context) (*RemoteMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialCalls++
	return f.initial, f.initialErr
}

func (f *fakeTransport) OnMessage(fn func(RemoteMessage)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onMessage = append(f.onMessage, fn)
	return f.unsub
}

func (f *fakeTransport) OnNotificationOpenedApp(fn func(RemoteMessage)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpened = append(f.onOpened, fn)
	return f.unsub
}

func (f *fakeTransport) OnTokenRefresh(fn func(string)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRefresh = append(f.onRefresh, fn)
	return f.unsub
}

func (f *fakeTransport) unsub() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed++
}

func (f *fakeTransport) emitMessage(m RemoteMessage) {
	for _, fn := range f.onMessage {
		fn(m)
	}
}

func (f *fakeTransport) emitOpened(m RemoteMessage) {
	for _, fn := range f.onOpened {
		fn(m)
	}
}

func (f *fakeTransport) emitRefresh(token string) {
	for _, fn := range f.onRefresh {
		fn(token)
	}
}

type fakeLocal struct {
	mu sync.Mutex

	status    AuthorizationState
	statusErr error

	displayed []LocalNotification
	listeners []func(ForegroundEvent)
	unsubbed  int

	osBadge    int
	osBadgeErr error
	badgeSets  []int
}

func (f *fakeLocal) DisplayNotification(ctx context.Context, n LocalNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.displayed = append(f.displayed, n)
	return nil
}

func (f *fakeLocal) OnForegroundEvent(fn func(ForegroundEvent)) Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubbed++
	}
}

func (f *fakeLocal) AuthorizationStatus(ctx context.Context) (AuthorizationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusErr
}

func (f *fakeLocal) SetBadgeCount(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.badgeSets = append(f.badgeSets, n)
	f.osBadge = n
	return nil
}

func (f *fakeLocal) BadgeCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.osBadge, f.osBadgeErr
}

func (f *fakeLocal) emit(e ForegroundEvent) {
	for _, fn := range f.listeners {
		fn(e)
	}
}

type mapStore struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

type registerCall struct {
	Session string
	Req     RegisterDeviceRequest
}

type fakeBackend struct {
	mu sync.Mutex

	registerErr error
	registers   []registerCall

	unregisterErr error
	unregisters   []string

	prefsErr error
	prefs    []Settings

	unread    int
	unreadErr error
}

var errBackendDown = errors.New("backend unreachable")

func (b *fakeBackend) RegisterDevice(ctx context.Context, session string, req RegisterDeviceRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registers = append(b.registers, registerCall{Session: session, Req: req})
	return b.registerErr
}

func (b *fakeBackend) UnregisterDevice(ctx context.Context, session string, deviceToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unregisters = append(b.unregisters, deviceToken)
	return b.unregisterErr
}

func (b *fakeBackend) UpdatePreferences(ctx context.Context, session string, s Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefs = append(b.prefs, s)
	return b.prefsErr
}

func (b *fakeBackend) UnreadCount(ctx context.Context, session string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread, b.unreadErr
}

func (b *fakeBackend) registrations() []registerCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]registerCall(nil), b.registers...)
}

type navRecorder struct {
	mu    sync.Mutex
	calls []Destination
	err   error
}

func (n *navRecorder) navigate(d Destination) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, d)
	return n.err
}

func (n *navRecorder) destinations() []Destination {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Destination(nil), n.calls...)
}

type alertRecorder struct{ shown int }

func (a *alertRecorder) PermissionDenied() { a.shown++ }

func signedIn(store *mapStore) {
	store.data[KeySessionToken] = "session-abc"
}
