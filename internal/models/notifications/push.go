package models

import "errors"

// ErrStaleDeviceToken is returned by a sender when the push provider reports
// the device token as no longer registered.
var ErrStaleDeviceToken = errors.New("device token is no longer registered")

// Push is one outgoing message addressed to a single device token.
type Push struct {
	Token     string
	Title     string
	Body      string
	Data      map[string]string
	ChannelID string
	Badge     int
}
