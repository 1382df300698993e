// Package notifications persists fired alerts under the user's notification
// list and delivers them as push messages.
//
// Flow per alert: dedup claim (optional) → append record → look up push
// token → send via FCM. Only a failed append is an error; a missing token
// skips delivery and a failed push is logged and reported in Delivery.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/krishisakhi/farm-alerts/internal/farm"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	pushDataKeyType = "type"
	pushDataKeyID   = "notification_id"
	pushDataKeyLang = "lang"
)

// ErrUserNotFound is returned by stores when the user id does not exist.
var ErrUserNotFound = errors.New("user not found")

// --------------------------------------------------------------------------
// Dependencies
// --------------------------------------------------------------------------

// Store is the slice of the user store the notifier needs.
type Store interface {
	// AppendNotification adds n under the user's notifications and returns
	// the new record's id.
	AppendNotification(ctx context.Context, uid string, n farm.Notification) (string, error)
	// PushToken returns the user's registered device token, or "" if none.
	PushToken(ctx context.Context, uid string) (string, error)
}

// Sender delivers a push message to one device.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Delivery reports what happened to one alert.
type Delivery struct {
	NotificationID string
	Suppressed     bool  // dedup guard already saw this alert today
	Pushed         bool  // push accepted by the push service
	NoToken        bool  // user has no registered device
	PushErr        error // push attempted and failed; not fatal
}

// Clock returns the current time. Injected for tests.
type Clock func() time.Time
