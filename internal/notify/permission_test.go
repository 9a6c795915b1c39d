package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionGate_CheckStatusIsStable(t *testing.T) {
	ctx := context.Background()
	for _, st := range []AuthorizationState{NotDetermined, Authorized, Provisional, Denied} {
		local := &fakeLocal{status: st}
		g := NewPermissionGate(&fakeTransport{}, local, nil)
		first := g.CheckStatus(ctx)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, g.CheckStatus(ctx))
		}
		assert.Equal(t, st, first)
	}
}

func TestPermissionGate_CheckStatusFailsClosed(t *testing.T) {
	g := NewPermissionGate(&fakeTransport{}, &fakeLocal{status: Authorized, statusErr: errors.New("bridge down")}, nil)
	assert.Equal(t, Denied, g.CheckStatus(context.Background()))
	assert.Equal(t, Denied, g.State())
}

func TestPermissionGate_RequestGranted(t *testing.T) {
	for _, result := range []AuthorizationState{Authorized, Provisional} {
		tr := &fakeTransport{requestResult: result}
		g := NewPermissionGate(tr, &fakeLocal{status: NotDetermined}, nil)
		hooked := 0
		g.OnGranted(func(context.Context) { hooked++ })

		assert.True(t, g.RequestPermission(context.Background()))
		assert.Equal(t, 1, hooked)
		assert.Equal(t, result, g.State())
	}
}

func TestPermissionGate_RequestDenied(t *testing.T) {
	tr := &fakeTransport{requestResult: Denied}
	g := NewPermissionGate(tr, &fakeLocal{status: NotDetermined}, nil)
	hooked := 0
	g.OnGranted(func(context.Context) { hooked++ })

	assert.False(t, g.RequestPermission(context.Background()))
	assert.Zero(t, hooked)
	assert.Equal(t, Denied, g.State())
}

func TestPermissionGate_RequestErrorIsDenied(t *testing.T) {
	tr := &fakeTransport{requestResult: Authorized, requestErr: errors.New("dialog failed")}
	g := NewPermissionGate(tr, &fakeLocal{status: NotDetermined}, nil)

	assert.False(t, g.RequestPermission(context.Background()))
	assert.Equal(t, Denied, g.State())
}

func TestPermissionGate_AlreadyAuthorizedIsNoop(t *testing.T) {
	tr := &fakeTransport{requestResult: Denied}
	g := NewPermissionGate(tr, &fakeLocal{status: Authorized}, nil)
	hooked := 0
	g.OnGranted(func(context.Context) { hooked++ })

	assert.True(t, g.RequestPermission(context.Background()))
	assert.True(t, g.RequestPermission(context.Background()))
	assert.Zero(t, tr.requestCalls)
	assert.Zero(t, hooked)
}

func TestPermissionGate_RecheckRunsHookOnEnable(t *testing.T) {
	ctx := context.Background()
	local := &fakeLocal{status: Denied}
	g := NewPermissionGate(&fakeTransport{}, local, nil)
	hooked := 0
	g.OnGranted(func(context.Context) { hooked++ })

	assert.Equal(t, Denied, g.Recheck(ctx))
	assert.Zero(t, hooked)

	local.status = Authorized
	assert.Equal(t, Authorized, g.Recheck(ctx))
	assert.Equal(t, 1, hooked)

	// still enabled: no second registration
	assert.Equal(t, Authorized, g.Recheck(ctx))
	assert.Equal(t, 1, hooked)
}

func TestParseAuthorizationState(t *testing.T) {
	assert.Equal(t, Authorized, ParseAuthorizationState("authorized"))
	assert.Equal(t, Provisional, ParseAuthorizationState("2"))
	assert.Equal(t, NotDetermined, ParseAuthorizationState("NOT_DETERMINED"))
	assert.Equal(t, Denied, ParseAuthorizationState("denied"))
	assert.Equal(t, Denied, ParseAuthorizationState("garbage"))
}
