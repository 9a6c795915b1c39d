// Package notify implements the push-notification lifecycle of the Huddle
// client: permission acquisition, device-token registration, ingestion of OS
// notification events and dispatch of notification payloads to in-app
// destinations.
//
// Platform capabilities (push transport, local notifications, key-value
// storage, backend, navigation) are injected as interfaces so the same core
// runs against a device bridge, the simulator, or test fakes.
package notify

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSession is returned when an operation needs a user session token and
// none is stored. Callers treat it as "skip", not as a failure to retry.
var ErrNoSession = errors.New("no user session")

// AuthorizationState is the OS notification authorization status.
type AuthorizationState int

const (
	NotDetermined AuthorizationState = iota
	Authorized
	Provisional
	Denied
)

func (s AuthorizationState) String() string {
	switch s {
	case NotDetermined:
		return "NOT_DETERMINED"
	case Authorized:
		return "AUTHORIZED"
	case Provisional:
		return "PROVISIONAL"
	case Denied:
		return "DENIED"
	default:
		return "UNKNOWN"
	}
}

// Enabled reports whether the state lets the app deliver notifications.
func (s AuthorizationState) Enabled() bool {
	return s == Authorized || s == Provisional
}

// ParseAuthorizationState maps a bridge status string to a state. Anything
// unrecognised is treated as Denied.
func ParseAuthorizationState(v string) AuthorizationState {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NOT_DETERMINED", "NOTDETERMINED", "-1":
		return NotDetermined
	case "AUTHORIZED", "1":
		return Authorized
	case "PROVISIONAL", "2":
		return Provisional
	default:
		return Denied
	}
}

// Platform identifies the mobile OS the client runs on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// TransportKind identifies the push transport that issued a token.
type TransportKind string

const (
	TransportAPNS TransportKind = "apns"
	TransportFCM  TransportKind = "fcm"
)

// DeviceToken is the opaque per-install push identifier.
type DeviceToken struct {
	Value     string        `json:"value"`
	Platform  Platform      `json:"platform"`
	Transport TransportKind `json:"transport"`
}

// Device describes the install registering for pushes.
type Device struct {
	Platform Platform
	// Type is the form factor reported to the backend ("phone", "tablet").
	Type string
}

// Settings are the user-chosen notification category toggles.
type Settings struct {
	Enabled        bool `json:"enabled"`
	FriendRequests bool `json:"friendRequests"`
	EventUpdates   bool `json:"eventUpdates"`
	EventReminders bool `json:"eventReminders"`
	CommunityNotes bool `json:"communityNotes"`
}

// DefaultSettings has every toggle on.
func DefaultSettings() Settings {
	return Settings{
		Enabled:        true,
		FriendRequests: true,
		EventUpdates:   true,
		EventReminders: true,
		CommunityNotes: true,
	}
}

// SettingsPatch is a partial update; nil fields keep their prior value.
type SettingsPatch struct {
	Enabled        *bool `json:"enabled,omitempty"`
	FriendRequests *bool `json:"friendRequests,omitempty"`
	EventUpdates   *bool `json:"eventUpdates,omitempty"`
	EventReminders *bool `json:"eventReminders,omitempty"`
	CommunityNotes *bool `json:"communityNotes,omitempty"`
}

// Apply returns s with every non-nil field of p applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.FriendRequests != nil {
		s.FriendRequests = *p.FriendRequests
	}
	if p.EventUpdates != nil {
		s.EventUpdates = *p.EventUpdates
	}
	if p.EventReminders != nil {
		s.EventReminders = *p.EventReminders
	}
	if p.CommunityNotes != nil {
		s.CommunityNotes = *p.CommunityNotes
	}
	return s
}

// Allows reports whether a notification of kind k may be shown under s.
func (s Settings) Allows(k Kind) bool {
	if !s.Enabled {
		return false
	}
	switch k.Category() {
	case CategoryFriends:
		return s.FriendRequests
	case CategoryEvents:
		return s.EventUpdates
	case CategoryReminders:
		return s.EventReminders
	case CategoryCommunity:
		return s.CommunityNotes
	default:
		return true
	}
}

// Bool returns a pointer to v, for building a SettingsPatch.
func Bool(v bool) *bool { return &v }

// Unsubscribe tears down an event subscription. It is safe to call more than once.
type Unsubscribe func()

// RemoteNotification is the visible part of a remote message.
type RemoteNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// RemoteMessage is a message delivered by the push transport.
type RemoteMessage struct {
	MessageID    string              `json:"messageId"`
	Notification *RemoteNotification `json:"notification,omitempty"`
	Data         map[string]string   `json:"data"`
}

// LocalNotification is a notification rendered by the app itself.
type LocalNotification struct {
	ID        string
	ChannelID string
	Title     string
	Body      string
	Data      map[string]string
}

// ForegroundEventKind is the kind of a local-notification event.
type ForegroundEventKind string

const (
	EventPress       ForegroundEventKind = "press"
	EventActionPress ForegroundEventKind = "action_press"
	EventDismissed   ForegroundEventKind = "dismissed"
	EventDelivered   ForegroundEventKind = "delivered"
)

// ForegroundEvent is emitted by the local-notification layer.
type ForegroundEvent struct {
	Kind         ForegroundEventKind
	Notification LocalNotification
}

// PushTransport is the platform push capability (APNs/FCM bridge).
type PushTransport interface {
	RequestPermission(ctx context.Context) (AuthorizationState, error)
	// APNSToken returns the APNs handle. Only meaningful on iOS.
	APNSToken(ctx context.Context) (string, error)
	Token(ctx context.Context) (string, error)
	DeleteToken(ctx context.Context) error
	InitialNotification(ctx context.Context) (*RemoteMessage, error)
	OnMessage(fn func(RemoteMessage)) Unsubscribe
	OnNotificationOpenedApp(fn func(RemoteMessage)) Unsubscribe
	OnTokenRefresh(fn func(token string)) Unsubscribe
}

// LocalNotifier is the on-device notification layer.
type LocalNotifier interface {
	DisplayNotification(ctx context.Context, n LocalNotification) error
	OnForegroundEvent(fn func(ForegroundEvent)) Unsubscribe
	// AuthorizationStatus reads the cached OS settings without prompting.
	AuthorizationStatus(ctx context.Context) (AuthorizationState, error)
	SetBadgeCount(ctx context.Context, n int) error
	BadgeCount(ctx context.Context) (int, error)
}

// KeyValueStore is local persistent storage.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SessionSource yields the signed-in user's bearer token.
type SessionSource interface {
	// SessionToken returns ErrNoSession when nobody is signed in.
	SessionToken(ctx context.Context) (string, error)
}

// RegisterDeviceRequest is the body of POST /api/notifications/register-device.
type RegisterDeviceRequest struct {
	DeviceToken string   `json:"deviceToken"`
	Platform    Platform `json:"platform"`
	DeviceType  string   `json:"deviceType"`
}

// Backend is the REST surface the subsystem talks to.
type Backend interface {
	RegisterDevice(ctx context.Context, session string, req RegisterDeviceRequest) error
	UnregisterDevice(ctx context.Context, session string, deviceToken string) error
	UpdatePreferences(ctx context.Context, session string, s Settings) error
	UnreadCount(ctx context.Context, session string) (int, error)
}

// Alerter shows the permission-denied alert when the user explicitly asked
// for permission and was refused.
type Alerter interface {
	PermissionDenied()
}

// Storage keys.
const (
	KeyDeviceToken  = "push.device_token"
	KeySettings     = "push.notification_settings"
	KeySessionToken = "auth.session_token"
)

// KVSession reads the session token from a KeyValueStore.
type KVSession struct {
	Store KeyValueStore
}

func (k KVSession) SessionToken(ctx context.Context) (string, error) {
	v, ok, err := k.Store.Get(ctx, KeySessionToken)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", ErrNoSession
	}
	return v, nil
}
