package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	transport *fakeTransport
	local     *fakeLocal
	store     *mapStore
	backend   *fakeBackend
	alerter   *alertRecorder
	svc       *Service
}

func newServiceFixture(status AuthorizationState) *serviceFixture {
	f := &serviceFixture{
		transport: &fakeTransport{token: "tok-1", requestResult: Authorized},
		local:     &fakeLocal{status: status},
		store:     newMapStore(),
		backend:   &fakeBackend{},
		alerter:   &alertRecorder{},
	}
	f.svc = NewService(Dependencies{
		Transport: f.transport,
		Local:     f.local,
		Store:     f.store,
		Backend:   f.backend,
		Device:    Device{Platform: PlatformAndroid, Type: "phone"},
		Alerter:   f.alerter,
	})
	return f
}

func TestService_StartAuthorized(t *testing.T) {
	f := newServiceFixture(Authorized)
	signedIn(f.store)
	f.backend.unread = 5

	f.svc.Start(context.Background())
	defer f.svc.Close()

	assert.True(t, f.svc.IsInitialized())
	assert.True(t, f.svc.HasPermission())
	assert.Equal(t, Authorized, f.svc.PermissionStatus())
	assert.Equal(t, 5, f.svc.BadgeCount())
	assert.Equal(t, []int{5}, f.local.badgeSets)

	regs := f.backend.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "tok-1", regs[0].Req.DeviceToken)
}

func TestService_StartBackendDownUsesOSBadge(t *testing.T) {
	f := newServiceFixture(Authorized)
	signedIn(f.store)
	f.backend.unreadErr = errBackendDown
	f.local.osBadge = 3

	f.svc.Start(context.Background())
	defer f.svc.Close()

	assert.True(t, f.svc.IsInitialized())
	assert.Equal(t, 3, f.svc.BadgeCount())
}

func TestService_DeniedPermission(t *testing.T) {
	f := newServiceFixture(NotDetermined)
	f.transport.requestResult = Denied
	signedIn(f.store)

	f.svc.Start(context.Background())
	defer f.svc.Close()

	assert.False(t, f.svc.RequestPermission(context.Background()))
	assert.False(t, f.svc.HasPermission())
	assert.Equal(t, DefaultSettings(), f.svc.Settings())
	assert.Empty(t, f.backend.registrations())
	assert.Zero(t, f.transport.tokenCalls)
	assert.Equal(t, 1, f.alerter.shown)
}

func TestService_GrantedPermissionRegistersToken(t *testing.T) {
	f := newServiceFixture(NotDetermined)
	signedIn(f.store)

	f.svc.Start(context.Background())
	defer f.svc.Close()
	assert.Empty(t, f.backend.registrations())

	f.local.status = NotDetermined
	assert.True(t, f.svc.RequestPermission(context.Background()))
	assert.True(t, f.svc.HasPermission())

	regs := f.backend.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "tok-1", regs[0].Req.DeviceToken)
	assert.Zero(t, f.alerter.shown)
}

func TestService_ColdStartNotificationWaitsForNavigation(t *testing.T) {
	f := newServiceFixture(Authorized)
	f.transport.initial = &RemoteMessage{Data: rosterData}

	f.svc.Start(context.Background())
	defer f.svc.Close()

	nav := &navRecorder{}
	f.svc.SetNavigationRef(nav.navigate)
	assert.Equal(t, []Destination{rosterDest}, nav.destinations())

	f.svc.SetNavigationRef(nav.navigate)
	assert.Len(t, nav.destinations(), 1)
}

func TestService_TokenRefreshReRegisters(t *testing.T) {
	f := newServiceFixture(Authorized)
	signedIn(f.store)
	f.svc.Start(context.Background())
	defer f.svc.Close()

	f.transport.emitRefresh("tok-2")

	cur, ok := f.svc.CurrentToken()
	require.True(t, ok)
	assert.Equal(t, "tok-2", cur.Value)
	regs := f.backend.registrations()
	assert.Equal(t, "tok-2", regs[len(regs)-1].Req.DeviceToken)
}

func TestService_LoginAfterPermission(t *testing.T) {
	f := newServiceFixture(Authorized)
	f.svc.Start(context.Background())
	defer f.svc.Close()
	assert.Empty(t, f.backend.registrations())

	signedIn(f.store)
	f.backend.unread = 2
	f.svc.OnAuthenticated(context.Background())

	regs := f.backend.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "tok-1", regs[0].Req.DeviceToken)
	assert.Equal(t, 2, f.svc.BadgeCount())
}

func TestService_Logout(t *testing.T) {
	f := newServiceFixture(Authorized)
	signedIn(f.store)
	f.backend.unread = 4
	f.svc.Start(context.Background())
	defer f.svc.Close()

	f.svc.OnLogout(context.Background())

	_, ok := f.svc.CurrentToken()
	assert.False(t, ok)
	assert.Equal(t, 0, f.svc.BadgeCount())
	assert.Equal(t, []string{"tok-1"}, f.backend.unregisters)
}

func TestService_SubscribeAndSnapshot(t *testing.T) {
	f := newServiceFixture(Authorized)
	var seen []State
	unsub := f.svc.Subscribe(func(s State) { seen = append(seen, s) })

	f.svc.Start(context.Background())
	defer f.svc.Close()
	f.svc.UpdateSettings(context.Background(), SettingsPatch{EventReminders: Bool(false)})
	unsub()
	f.svc.ClearBadge(context.Background())

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Initialized)
	assert.False(t, seen[1].Settings.EventReminders)
	assert.Equal(t, f.svc.Snapshot().Settings, seen[1].Settings)
}

func TestService_CloseUnsubscribes(t *testing.T) {
	f := newServiceFixture(Authorized)
	f.svc.Start(context.Background())
	f.svc.Close()

	// OnMessage, OnNotificationOpenedApp and OnTokenRefresh.
	assert.Equal(t, 3, f.transport.unsubbed)
	assert.Equal(t, 1, f.local.unsubbed)
}

func TestService_BadgeRefreshScheduleInvalid(t *testing.T) {
	f := newServiceFixture(Authorized)
	f.svc.badgeRefresh = "not a schedule"

	f.svc.Start(context.Background())
	defer f.svc.Close()
	assert.True(t, f.svc.IsInitialized())
}

func TestService_PermissionEnabledInSystemSettings(t *testing.T) {
	f := newServiceFixture(Denied)
	signedIn(f.store)
	f.svc.Start(context.Background())
	defer f.svc.Close()
	assert.Empty(t, f.backend.registrations())

	f.local.status = Authorized
	assert.Equal(t, Authorized, f.svc.CheckPermission(context.Background()))
	assert.True(t, f.svc.HasPermission())

	cur, ok := f.svc.CurrentToken()
	require.True(t, ok)
	assert.Equal(t, "tok-1", cur.Value)
	regs := f.backend.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "tok-1", regs[0].Req.DeviceToken)
}

func TestService_LogoutWithoutTokenLeavesBackendAlone(t *testing.T) {
	f := newServiceFixture(Denied)
	signedIn(f.store)
	f.svc.Start(context.Background())
	defer f.svc.Close()

	f.svc.OnLogout(context.Background())

	assert.Empty(t, f.backend.unregisters)
	assert.Zero(t, f.transport.deleted)
}
