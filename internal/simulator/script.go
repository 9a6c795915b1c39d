package simulator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"io.winapps.huddle/internal/notify"
)

// Script event names. Each input line is one JSON object:
//
//	{"event":"message","payload":{"notification":{...},"data":{...}}}
//	{"event":"open","payload":{...}}
//	{"event":"initial","payload":{...}}
//	{"event":"token_refresh","token":"fcm-2"}
//	{"event":"press","id":"..."}            (id optional)
//	{"event":"action_press","id":"..."}
//	{"event":"dismiss","id":"..."}
//	{"event":"authorization","state":"denied"}
//	{"event":"sleep","ms":250}
const (
	EventMessage       = "message"
	EventOpen          = "open"
	EventInitial       = "initial"
	EventTokenRefresh  = "token_refresh"
	EventPress         = "press"
	EventActionPress   = "action_press"
	EventDismiss       = "dismiss"
	EventAuthorization = "authorization"
	EventSleep         = "sleep"
)

// Run feeds newline-delimited JSON events from r into the device until EOF
// or ctx is done. Blank lines and lines starting with '#' are skipped. A
// malformed line aborts the run with its line number.
func (d *Device) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := d.Apply(ctx, []byte(text)); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return nil
}

// Apply executes one script event.
func (d *Device) Apply(ctx context.Context, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("invalid event JSON")
	}
	ev := gjson.ParseBytes(raw)
	name := ev.Get("event").String()

	switch name {
	case EventMessage, EventOpen, EventInitial:
		payload := ev.Get("payload")
		if !payload.Exists() {
			return fmt.Errorf("%s event without payload", name)
		}
		m, err := notify.DecodeRemoteMessage([]byte(payload.Raw))
		if err != nil {
			return fmt.Errorf("decoding %s payload: %w", name, err)
		}
		switch name {
		case EventMessage:
			d.Deliver(m)
		case EventOpen:
			d.Open(m)
		default:
			d.SetInitialNotification(m)
		}
	case EventTokenRefresh:
		d.RotateToken(ev.Get("token").String())
	case EventPress:
		return d.Interact(notify.EventPress, ev.Get("id").String())
	case EventActionPress:
		return d.Interact(notify.EventActionPress, ev.Get("id").String())
	case EventDismiss:
		return d.Interact(notify.EventDismissed, ev.Get("id").String())
	case EventAuthorization:
		d.SetAuthorization(notify.ParseAuthorizationState(ev.Get("state").String()))
	case EventSleep:
		t := time.NewTimer(time.Duration(ev.Get("ms").Int()) * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	default:
		return fmt.Errorf("unknown event %q", name)
	}
	d.logger.Debugw("script event applied", "event", name)
	return nil
}
