package simulator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"io.winapps.huddle/internal/kvstore"
	"io.winapps.huddle/internal/notify"
)

type stubBackend struct {
	mu         sync.Mutex
	registered []string
}

func (b *stubBackend) RegisterDevice(ctx context.Context, session string, req notify.RegisterDeviceRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = append(b.registered, req.DeviceToken)
	return nil
}

func (b *stubBackend) UnregisterDevice(ctx context.Context, session string, deviceToken string) error {
	return nil
}

func (b *stubBackend) UpdatePreferences(ctx context.Context, session string, s notify.Settings) error {
	return nil
}

func (b *stubBackend) UnreadCount(ctx context.Context, session string) (int, error) {
	return 2, nil
}

func (b *stubBackend) tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.registered...)
}

type navLog struct {
	mu   sync.Mutex
	dest []notify.Destination
}

func (n *navLog) navigate(d notify.Destination) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dest = append(n.dest, d)
	return nil
}

func (n *navLog) all() []notify.Destination {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Destination(nil), n.dest...)
}

func startService(t *testing.T, dev *Device) (*notify.Service, *stubBackend) {
	t.Helper()
	ctx := context.Background()
	store := kvstore.NewMemory()
	require.NoError(t, store.Set(ctx, notify.KeySessionToken, "session-abc"))
	backend := &stubBackend{}

	svc := notify.NewService(notify.Dependencies{
		Transport: dev,
		Local:     dev,
		Store:     store,
		Backend:   backend,
		Device:    notify.Device{Platform: notify.PlatformAndroid, Type: "simulator"},
	})
	svc.Start(ctx)
	t.Cleanup(svc.Close)
	return svc, backend
}

func TestRun_ForegroundMessageThenPress(t *testing.T) {
	dev := New(Options{Authorization: notify.Authorized})
	svc, backend := startService(t, dev)
	nav := &navLog{}
	svc.SetNavigationRef(nav.navigate)

	script := `
# foreground delivery renders locally, the press navigates
{"event":"message","payload":{"messageId":"m-1","notification":{"title":"Roster","body":"Sam joined"},"data":{"type":"event_roster","eventId":"e-7"}}}
{"event":"press"}
`
	require.NoError(t, dev.Run(context.Background(), strings.NewReader(script)))

	shown := dev.Displayed()
	require.Len(t, shown, 1)
	assert.Equal(t, "m-1", shown[0].ID)
	assert.Equal(t, "events", shown[0].ChannelID)

	dests := nav.all()
	require.Len(t, dests, 1)
	assert.Equal(t, "Local", dests[0].Tab)
	assert.Equal(t, "EventRoster", dests[0].Screen)
	assert.Equal(t, "e-7", dests[0].Params["eventId"])

	assert.Len(t, backend.tokens(), 1)
	badge, err := dev.BadgeCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, badge)
}

func TestRun_OpenBeforeNavigationReady(t *testing.T) {
	dev := New(Options{Authorization: notify.Authorized})
	svc, _ := startService(t, dev)

	script := `{"event":"open","payload":{"data":{"type":"friend_request","requesterId":"u-1"}}}
{"event":"open","payload":{"data":{"type":"community_note","noteId":"n-3"}}}`
	require.NoError(t, dev.Run(context.Background(), strings.NewReader(script)))

	nav := &navLog{}
	svc.SetNavigationRef(nav.navigate)

	dests := nav.all()
	require.Len(t, dests, 1, "only the newest pending record survives")
	assert.Equal(t, "PostDetails", dests[0].Screen)
	assert.Equal(t, "n-3", dests[0].Params["postId"])
}

func TestRun_TokenRefreshReRegisters(t *testing.T) {
	dev := New(Options{Authorization: notify.Authorized})
	svc, backend := startService(t, dev)

	require.NoError(t, dev.Run(context.Background(), strings.NewReader(`{"event":"token_refresh","token":"fcm-rotated"}`)))

	tok, ok := svc.CurrentToken()
	require.True(t, ok)
	assert.Equal(t, "fcm-rotated", tok.Value)
	assert.Contains(t, backend.tokens(), "fcm-rotated")
}

func TestRun_Authorization(t *testing.T) {
	dev := New(Options{Authorization: notify.Authorized})
	require.NoError(t, dev.Apply(context.Background(), []byte(`{"event":"authorization","state":"denied"}`)))

	st, err := dev.AuthorizationStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notify.Denied, st)
	_, err = dev.Token(context.Background())
	assert.Error(t, err)
}

func TestRun_Errors(t *testing.T) {
	dev := New(Options{})

	err := dev.Run(context.Background(), strings.NewReader("\n{\"event\":\"teleport\"}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	assert.Error(t, dev.Apply(context.Background(), []byte(`{"event":"message"}`)))
	assert.Error(t, dev.Apply(context.Background(), []byte(`not json`)))
	assert.Error(t, dev.Apply(context.Background(), []byte(`{"event":"press","id":"nope"}`)))
}

func TestRequestPermission_UsesGrant(t *testing.T) {
	dev := New(Options{Grant: notify.Denied})
	st, err := dev.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notify.Denied, st)

	_, err = dev.APNSToken(context.Background())
	assert.Error(t, err, "android device has no apns token")
}

func TestCheckPermission_EnabledInSystemSettings(t *testing.T) {
	dev := New(Options{Authorization: notify.Denied})
	svc, backend := startService(t, dev)
	assert.Empty(t, backend.tokens())

	dev.SetAuthorization(notify.Authorized)
	assert.Equal(t, notify.Authorized, svc.CheckPermission(context.Background()))

	_, ok := svc.CurrentToken()
	assert.True(t, ok)
	assert.Len(t, backend.tokens(), 1)
}
