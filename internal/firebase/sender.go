// Package firebase wires the Firebase Admin SDK: app bootstrap, ID token
// verification and FCM delivery.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	models "io.winapps.huddle/internal/models/notifications"
)

// Messenger is the subset of *messaging.Client the sender needs.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Sender delivers pushes through FCM, which relays to APNs for iOS tokens.
type Sender struct {
	client Messenger
}

func NewSender(ctx context.Context, app *firebase.App) (*Sender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting FCM client: %w", err)
	}
	return &Sender{client: client}, nil
}

// NewSenderWithClient wraps an existing messenger.
func NewSenderWithClient(client Messenger) *Sender {
	return &Sender{client: client}
}

// Send delivers p and returns the FCM message id. A token FCM reports as
// unregistered yields models.ErrStaleDeviceToken.
func (s *Sender) Send(ctx context.Context, p models.Push) (string, error) {
	id, err := s.client.Send(ctx, BuildMessage(p))
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) {
			return "", fmt.Errorf("%w: %v", models.ErrStaleDeviceToken, err)
		}
		return "", fmt.Errorf("error sending message: %w", err)
	}
	return id, nil
}

// BuildMessage maps a push onto the FCM message shape. Data travels in the
// data block so the client can route taps from it.
func BuildMessage(p models.Push) *messaging.Message {
	badge := p.Badge
	return &messaging.Message{
		Token: p.Token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: p.ChannelID,
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: p.Title,
						Body:  p.Body,
					},
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}
}
