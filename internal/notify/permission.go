package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// PermissionGate wraps the OS authorization dialog and status query.
type PermissionGate struct {
	transport PushTransport
	local     LocalNotifier
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	state     AuthorizationState
	onGranted func(context.Context)
}

func NewPermissionGate(transport PushTransport, local LocalNotifier, logger *zap.SugaredLogger) *PermissionGate {
	return &PermissionGate{
		transport: transport,
		local:     local,
		logger:    orNop(logger),
		state:     NotDetermined,
	}
}

// OnGranted sets the hook run after RequestPermission ends in an enabled state.
func (g *PermissionGate) OnGranted(fn func(context.Context)) {
	g.mu.Lock()
	g.onGranted = fn
	g.mu.Unlock()
}

// CheckStatus reads the OS settings without prompting. Errors fail closed to
// Denied.
func (g *PermissionGate) CheckStatus(ctx context.Context) AuthorizationState {
	state, err := g.local.AuthorizationStatus(ctx)
	if err != nil {
		g.logger.Warnw("reading notification authorization failed", "error", err)
		state = Denied
	}
	g.set(state)
	return state
}

// Recheck re-reads the OS state like CheckStatus. When the state went from
// not enabled to enabled since the last observation, for instance after the
// user switched notifications on in system settings, the OnGranted hook runs.
func (g *PermissionGate) Recheck(ctx context.Context) AuthorizationState {
	prev := g.State()
	state := g.CheckStatus(ctx)
	if !prev.Enabled() && state.Enabled() {
		g.logger.Infow("notification permission enabled outside the app", "state", state.String())
		g.granted(ctx)
	}
	return state
}

// RequestPermission shows the OS dialog (the OS only shows it once) and
// reports whether the result counts as enabled. When the request turns an
// un-enabled state into an enabled one, the OnGranted hook runs before
// returning. Already-enabled states return true without prompting.
func (g *PermissionGate) RequestPermission(ctx context.Context) bool {
	if g.CheckStatus(ctx).Enabled() {
		return true
	}

	state, err := g.transport.RequestPermission(ctx)
	if err != nil {
		g.logger.Warnw("requesting notification permission failed", "error", err)
		state = Denied
	}
	g.set(state)

	if !state.Enabled() {
		g.logger.Infow("notification permission not granted", "state", state.String())
		return false
	}
	g.logger.Infow("notification permission granted", "state", state.String())
	g.granted(ctx)
	return true
}

// State returns the last observed state without touching the OS.
func (g *PermissionGate) State() AuthorizationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *PermissionGate) set(s AuthorizationState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *PermissionGate) granted(ctx context.Context) {
	g.mu.Lock()
	fn := g.onGranted
	g.mu.Unlock()
	if fn != nil {
		fn(ctx)
	}
}
