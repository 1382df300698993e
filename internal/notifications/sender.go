package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
)

// messagingClient is the subset of *messaging.Client used here.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender sends push notifications via Firebase Cloud Messaging.
// Nil-safe: when not configured, Send logs and returns nil.
type FCMSender struct {
	client messagingClient
	logger *slog.Logger
}

// NewFCMSender wraps a messaging client. Returns nil if client is nil
// (push disabled).
func NewFCMSender(client *messaging.Client, logger *slog.Logger) *FCMSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMSender{client: client, logger: logger}
}

// Send delivers one notification to a single device token.
func (s *FCMSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if s == nil {
		slog.Default().Info("FCM send skipped (push disabled)", "title", title)
		return nil
	}
	if token == "" {
		return fmt.Errorf("fcm: empty device token")
	}

	id, err := s.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm: token no longer registered: %w", err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}

	s.logger.Debug("FCM message sent", "message_id", id, "title", title)
	return nil
}
