package notify

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// NavigateFunc performs a screen transition. It is registered by the screen
// layer once its navigation tree is mounted.
type NavigateFunc func(Destination) error

// Dispatcher routes notification records to the registered navigation
// callback. Until a callback is registered it holds at most one pending
// record; a newer record replaces an older one.
type Dispatcher struct {
	logger *zap.SugaredLogger

	mu       sync.Mutex
	navigate NavigateFunc
	pending  *Record
}

func NewDispatcher(logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{logger: orNop(logger)}
}

// HandleNotificationData dispatches r, or parks it when no callback is
// registered yet.
func (d *Dispatcher) HandleNotificationData(r Record) {
	d.mu.Lock()
	nav := d.navigate
	if nav == nil {
		if d.pending != nil {
			d.logger.Infow("replacing pending notification", "previous", d.pending.Type, "type", r.Type)
		}
		d.pending = &r
		d.mu.Unlock()
		d.logger.Debugw("navigation not ready, notification held", "type", r.Type)
		return
	}
	d.mu.Unlock()

	d.dispatch(nav, r)
}

// RegisterNavigationCallback stores fn and flushes the pending record through
// it. Storing fn and taking the record out of the slot happen under one lock;
// the taken record is dispatched after the lock is released. A record that
// arrives after the lock sees fn and is dispatched directly, so none is lost
// or delivered twice.
func (d *Dispatcher) RegisterNavigationCallback(fn NavigateFunc) {
	d.mu.Lock()
	d.navigate = fn
	pending := d.pending
	if fn != nil {
		d.pending = nil
	}
	d.mu.Unlock()

	if fn != nil && pending != nil {
		d.logger.Infow("flushing pending notification", "type", pending.Type)
		d.dispatch(fn, *pending)
	}
}

// UnregisterNavigationCallback detaches the callback, e.g. when the
// navigation tree unmounts. Later records are held again.
func (d *Dispatcher) UnregisterNavigationCallback() {
	d.RegisterNavigationCallback(nil)
}

// Pending returns a copy of the held record, if any.
func (d *Dispatcher) Pending() (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return Record{}, false
	}
	return *d.pending, true
}

// dispatch resolves r and calls nav. Errors and panics from nav are logged
// and swallowed; this runs on OS callback paths with nothing above to catch them.
func (d *Dispatcher) dispatch(nav NavigateFunc, r Record) {
	dest, ok := Resolve(r)
	if !ok {
		d.logger.Infow("notification has no destination", "type", r.Type)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Errorw("navigation callback panicked",
				"type", r.Type, "tab", dest.Tab, "screen", dest.Screen, "panic", fmt.Sprint(p))
		}
	}()

	if err := nav(dest); err != nil {
		d.logger.Errorw("navigation failed",
			"type", r.Type, "tab", dest.Tab, "screen", dest.Screen, "error", err)
		return
	}
	d.logger.Infow("navigated from notification", "type", r.Type, "tab", dest.Tab, "screen", dest.Screen)
}

func orNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
