package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/rules"
)

// Notifier saves and pushes alerts for one user at a time. Safe for
// concurrent use when its dependencies are.
type Notifier struct {
	store  Store
	sender Sender
	guard  Guard
	now    Clock
	loc    *time.Location
	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithGuard enables alert dedup.
func WithGuard(g Guard) Option {
	return func(n *Notifier) { n.guard = g }
}

// WithClock overrides the time source used for timestamps and dedup dates.
func WithClock(c Clock) Option {
	return func(n *Notifier) { n.now = c }
}

// WithLocation sets the zone dedup dates are computed in.
func WithLocation(loc *time.Location) Option {
	return func(n *Notifier) { n.loc = loc }
}

// NewNotifier creates a Notifier. sender may be a nil *FCMSender.
func NewNotifier(store Store, sender Sender, logger *slog.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = (*FCMSender)(nil)
	}
	n := &Notifier{
		store:  store,
		sender: sender,
		guard:  noopGuard{},
		now:    time.Now,
		loc:    time.UTC,
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify persists alert under uid and attempts a push. lang is stored on
// the record as given.
func (n *Notifier) Notify(ctx context.Context, uid string, alert rules.Alert, lang string) (Delivery, error) {
	var d Delivery
	now := n.now()

	key := DedupKey(uid, alert, now.In(n.loc))
	claimed, err := n.guard.Claim(ctx, key)
	if err != nil {
		n.logger.Warn("dedup claim failed, sending anyway", "user_id", uid, "key", key, "error", err)
		claimed = true
	}
	if !claimed {
		d.Suppressed = true
		n.logger.Debug("alert suppressed", "user_id", uid, "rule", alert.Rule, "key", key)
		return d, nil
	}

	id, err := n.store.AppendNotification(ctx, uid, farm.Notification{
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: now.UnixMilli(),
		Type:      alert.Type,
		Lang:      lang,
		Read:      false,
	})
	if err != nil {
		// Let the next run retry this alert.
		n.guard.Release(ctx, key)
		return d, fmt.Errorf("save notification for %s: %w", uid, err)
	}
	d.NotificationID = id

	token, err := n.store.PushToken(ctx, uid)
	if err != nil {
		d.PushErr = fmt.Errorf("lookup push token: %w", err)
		n.logger.Warn("push token lookup failed", "user_id", uid, "error", err)
		return d, nil
	}
	if token == "" {
		d.NoToken = true
		return d, nil
	}

	data := map[string]string{
		pushDataKeyType: alert.Type,
		pushDataKeyID:   id,
		pushDataKeyLang: lang,
	}
	if err := n.sender.Send(ctx, token, alert.Title, alert.Message, data); err != nil {
		d.PushErr = err
		n.logger.Warn("push failed", "user_id", uid, "rule", alert.Rule, "error", err)
		return d, nil
	}
	d.Pushed = true
	return d, nil
}

// SendTest sends the fixed test notification to uid.
func (n *Notifier) SendTest(ctx context.Context, uid string) (Delivery, error) {
	title, msg := rules.Messages(rules.RuleTest, "en")
	alert := rules.Alert{Rule: rules.RuleTest, Title: title, Message: msg, Type: farm.TypeTest}
	// Test sends bypass dedup so they can be repeated.
	unguarded := *n
	unguarded.guard = noopGuard{}
	return unguarded.Notify(ctx, uid, alert, "en")
}
