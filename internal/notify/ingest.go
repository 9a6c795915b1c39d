package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Router subscribes to the transport and local-notification event sources and
// funnels every tap into the Dispatcher through one normalization path.
type Router struct {
	transport  PushTransport
	local      LocalNotifier
	dispatcher *Dispatcher
	settings   func() Settings
	logger     *zap.SugaredLogger

	mu          sync.Mutex
	subs        []Unsubscribe
	initialDone bool
}

func NewRouter(transport PushTransport, local LocalNotifier, dispatcher *Dispatcher, settings func() Settings, logger *zap.SugaredLogger) *Router {
	if settings == nil {
		settings = DefaultSettings
	}
	return &Router{
		transport:  transport,
		local:      local,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     orNop(logger),
	}
}

// Start subscribes to all event sources and performs the one-time cold-start
// check. ctx bounds the work done inside event callbacks.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	if len(r.subs) == 0 {
		r.subs = append(r.subs,
			r.transport.OnMessage(func(m RemoteMessage) { r.HandleForegroundMessage(ctx, m) }),
			r.transport.OnNotificationOpenedApp(r.HandleNotificationOpened),
			r.local.OnForegroundEvent(r.HandleLocalEvent),
		)
	}
	r.mu.Unlock()

	r.CheckInitialNotification(ctx)
}

// Close removes every subscription made by Start.
func (r *Router) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, unsub := range subs {
		if unsub != nil {
			unsub()
		}
	}
}

// HandleForegroundMessage renders a message that arrived while the app is
// active. It never navigates: the user has to tap the local notification.
func (r *Router) HandleForegroundMessage(ctx context.Context, m RemoteMessage) {
	rec := NewRecord(m.Data)
	if !r.settings().Allows(rec.Kind) {
		r.logger.Debugw("foreground notification suppressed by settings", "type", rec.Type)
		return
	}

	n := LocalNotification{
		ID:        m.MessageID,
		ChannelID: string(rec.Kind.Category()),
		Data:      rec.Fields,
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if m.Notification != nil {
		n.Title = m.Notification.Title
		n.Body = m.Notification.Body
	}
	if n.Title == "" {
		n.Title = rec.Get("title")
	}
	if n.Body == "" {
		n.Body = rec.Get("body")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := r.local.DisplayNotification(ctx, n); err != nil {
		r.logger.Errorw("displaying foreground notification failed", "type", rec.Type, "error", err)
	}
}

// HandleNotificationOpened handles a tap that resumed the app from background.
func (r *Router) HandleNotificationOpened(m RemoteMessage) {
	r.logger.Infow("notification opened app", "message_id", m.MessageID)
	r.handleData(m.Data)
}

// HandleLocalEvent handles events from locally rendered notifications; only
// presses dispatch.
func (r *Router) HandleLocalEvent(e ForegroundEvent) {
	switch e.Kind {
	case EventPress, EventActionPress:
		r.handleData(e.Notification.Data)
	default:
		r.logger.Debugw("ignoring local notification event", "kind", string(e.Kind))
	}
}

// CheckInitialNotification dispatches the notification that cold-started the
// app. Only the first call per Router does anything.
func (r *Router) CheckInitialNotification(ctx context.Context) {
	r.mu.Lock()
	if r.initialDone {
		r.mu.Unlock()
		return
	}
	r.initialDone = true
	r.mu.Unlock()

	m, err := r.transport.InitialNotification(ctx)
	if err != nil {
		r.logger.Warnw("reading initial notification failed", "error", err)
		return
	}
	if m == nil {
		return
	}
	r.logger.Infow("app launched from notification", "message_id", m.MessageID)
	r.handleData(m.Data)
}

func (r *Router) handleData(data map[string]string) {
	if len(data) == 0 {
		r.logger.Debugw("notification without data payload")
		return
	}
	r.dispatcher.HandleNotificationData(NewRecord(data))
}
