// Package simulator provides an in-process push transport and local
// notification layer for running the notification subsystem headless.
package simulator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"io.winapps.huddle/internal/notify"
)

// Options configures a simulated device.
type Options struct {
	Platform notify.Platform
	// Authorization is the OS permission state before any prompt.
	Authorization notify.AuthorizationState
	// Grant is what the OS answers when the app asks for permission.
	Grant  notify.AuthorizationState
	Logger *zap.SugaredLogger
}

// Device implements notify.PushTransport and notify.LocalNotifier.
type Device struct {
	mu        sync.Mutex
	platform  notify.Platform
	auth      notify.AuthorizationState
	grant     notify.AuthorizationState
	token     string
	apnsToken string
	initial   *notify.RemoteMessage
	badge     int
	displayed []notify.LocalNotification

	nextID     int
	onMessage  map[int]func(notify.RemoteMessage)
	onOpened   map[int]func(notify.RemoteMessage)
	onRefresh  map[int]func(string)
	onLocalEvt map[int]func(notify.ForegroundEvent)

	logger *zap.SugaredLogger
}

var (
	_ notify.PushTransport = (*Device)(nil)
	_ notify.LocalNotifier = (*Device)(nil)
)

func New(opts Options) *Device {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	platform := opts.Platform
	if platform == "" {
		platform = notify.PlatformAndroid
	}
	grant := opts.Grant
	if grant == notify.NotDetermined {
		grant = notify.Authorized
	}
	return &Device{
		platform:   platform,
		auth:       opts.Authorization,
		grant:      grant,
		onMessage:  make(map[int]func(notify.RemoteMessage)),
		onOpened:   make(map[int]func(notify.RemoteMessage)),
		onRefresh:  make(map[int]func(string)),
		onLocalEvt: make(map[int]func(notify.ForegroundEvent)),
		logger:     logger,
	}
}

func (d *Device) RequestPermission(ctx context.Context) (notify.AuthorizationState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.auth == notify.NotDetermined {
		d.auth = d.grant
	}
	return d.auth, nil
}

func (d *Device) AuthorizationStatus(ctx context.Context) (notify.AuthorizationState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.auth, nil
}

// SetAuthorization changes the OS permission, as if the user toggled it in
// system settings.
func (d *Device) SetAuthorization(s notify.AuthorizationState) {
	d.mu.Lock()
	d.auth = s
	d.mu.Unlock()
}

func (d *Device) APNSToken(ctx context.Context) (string, error) {
	if d.platform != notify.PlatformIOS {
		return "", fmt.Errorf("apns token requested on %s", d.platform)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.apnsToken == "" {
		d.apnsToken = "apns-" + uuid.New().String()
	}
	return d.apnsToken, nil
}

// Token returns the current transport token, minting one when none exists.
func (d *Device) Token(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.auth.Enabled() {
		return "", fmt.Errorf("notifications not authorized")
	}
	if d.token == "" {
		d.token = "fcm-" + uuid.New().String()
	}
	return d.token, nil
}

func (d *Device) DeleteToken(ctx context.Context) error {
	d.mu.Lock()
	d.token = ""
	d.mu.Unlock()
	return nil
}

// InitialNotification returns the launch notification once.
func (d *Device) InitialNotification(ctx context.Context) (*notify.RemoteMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.initial
	d.initial = nil
	return m, nil
}

// SetInitialNotification simulates a cold start from a tapped notification.
func (d *Device) SetInitialNotification(m notify.RemoteMessage) {
	d.mu.Lock()
	d.initial = &m
	d.mu.Unlock()
}

func (d *Device) OnMessage(fn func(notify.RemoteMessage)) notify.Unsubscribe {
	return subscribe(d, d.onMessage, fn)
}

func (d *Device) OnNotificationOpenedApp(fn func(notify.RemoteMessage)) notify.Unsubscribe {
	return subscribe(d, d.onOpened, fn)
}

func (d *Device) OnTokenRefresh(fn func(string)) notify.Unsubscribe {
	return subscribe(d, d.onRefresh, fn)
}

func (d *Device) OnForegroundEvent(fn func(notify.ForegroundEvent)) notify.Unsubscribe {
	return subscribe(d, d.onLocalEvt, fn)
}

func subscribe[T any](d *Device, set map[int]T, fn T) notify.Unsubscribe {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	set[id] = fn
	return func() {
		d.mu.Lock()
		delete(set, id)
		d.mu.Unlock()
	}
}

func snapshot[T any](d *Device, set map[int]T) []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]T, 0, len(set))
	for _, fn := range set {
		out = append(out, fn)
	}
	return out
}

func (d *Device) DisplayNotification(ctx context.Context, n notify.LocalNotification) error {
	d.mu.Lock()
	d.displayed = append(d.displayed, n)
	d.mu.Unlock()
	d.logger.Infow("notification displayed", "id", n.ID, "channel", n.ChannelID, "title", n.Title)
	for _, fn := range snapshot(d, d.onLocalEvt) {
		fn(notify.ForegroundEvent{Kind: notify.EventDelivered, Notification: n})
	}
	return nil
}

// Displayed returns every notification rendered so far.
func (d *Device) Displayed() []notify.LocalNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.LocalNotification(nil), d.displayed...)
}

func (d *Device) SetBadgeCount(ctx context.Context, n int) error {
	d.mu.Lock()
	d.badge = n
	d.mu.Unlock()
	return nil
}

func (d *Device) BadgeCount(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badge, nil
}

// Deliver simulates a push arriving while the app is in the foreground.
func (d *Device) Deliver(m notify.RemoteMessage) {
	for _, fn := range snapshot(d, d.onMessage) {
		fn(m)
	}
}

// Open simulates the user tapping a push while the app is backgrounded.
func (d *Device) Open(m notify.RemoteMessage) {
	for _, fn := range snapshot(d, d.onOpened) {
		fn(m)
	}
}

// RotateToken replaces the transport token and notifies listeners.
func (d *Device) RotateToken(token string) {
	if token == "" {
		token = "fcm-" + uuid.New().String()
	}
	d.mu.Lock()
	d.token = token
	d.mu.Unlock()
	for _, fn := range snapshot(d, d.onRefresh) {
		fn(token)
	}
}

// Interact emits a foreground event for a displayed notification. An empty
// id picks the most recent one.
func (d *Device) Interact(kind notify.ForegroundEventKind, id string) error {
	d.mu.Lock()
	var found *notify.LocalNotification
	for i := len(d.displayed) - 1; i >= 0; i-- {
		if id == "" || d.displayed[i].ID == id {
			n := d.displayed[i]
			found = &n
			break
		}
	}
	d.mu.Unlock()
	if found == nil {
		return fmt.Errorf("no displayed notification %q", id)
	}
	for _, fn := range snapshot(d, d.onLocalEvt) {
		fn(notify.ForegroundEvent{Kind: kind, Notification: *found})
	}
	return nil
}
