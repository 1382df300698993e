package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/db"

	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
)

const usersPath = "Users"

// tree is the subset of the Realtime Database the store touches. Paths are
// slash-separated from the database root.
type tree interface {
	Get(ctx context.Context, path string, v interface{}) error
	Push(ctx context.Context, path string, v interface{}) (string, error)
	// Peek reads at most one child of path.
	Peek(ctx context.Context, path string) error
}

// rtdb adapts *db.Client to tree.
type rtdb struct {
	client *db.Client
}

func (r rtdb) Get(ctx context.Context, path string, v interface{}) error {
	return r.client.NewRef(path).Get(ctx, v)
}

func (r rtdb) Push(ctx context.Context, path string, v interface{}) (string, error) {
	ref, err := r.client.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", err
	}
	return ref.Key, nil
}

func (r rtdb) Peek(ctx context.Context, path string) error {
	var first map[string]json.RawMessage
	return r.client.NewRef(path).OrderByKey().LimitToFirst(1).Get(ctx, &first)
}

// Firebase is the Realtime Database backend.
type Firebase struct {
	tree   tree
	logger *slog.Logger
}

// NewFirebase wraps an initialized database client.
func NewFirebase(client *db.Client, logger *slog.Logger) *Firebase {
	return newFirebase(rtdb{client: client}, logger)
}

func newFirebase(t tree, logger *slog.Logger) *Firebase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firebase{tree: t, logger: logger}
}

// Name implements Store.
func (f *Firebase) Name() string { return "firebase" }

// ListUsers reads the full Users tree.
func (f *Firebase) ListUsers(ctx context.Context) ([]farm.User, error) {
	var raw map[string]json.RawMessage
	if err := f.tree.Get(ctx, usersPath, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", usersPath, err)
	}
	return decodeUsers(raw, f.logger), nil
}

// GetUser reads Users/{uid}.
func (f *Firebase) GetUser(ctx context.Context, uid string) (farm.User, error) {
	var raw json.RawMessage
	if err := f.tree.Get(ctx, userPath(uid), &raw); err != nil {
		return farm.User{}, fmt.Errorf("read user %s: %w", uid, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return farm.User{}, fmt.Errorf("%s: %w", uid, notifications.ErrUserNotFound)
	}
	return decodeUser(uid, raw)
}

// AppendNotification pushes a new child under Users/{uid}/notifications.
func (f *Firebase) AppendNotification(ctx context.Context, uid string, n farm.Notification) (string, error) {
	key, err := f.tree.Push(ctx, userPath(uid)+"/notifications", n)
	if err != nil {
		return "", fmt.Errorf("push notification: %w", err)
	}
	return key, nil
}

// PushToken reads Users/{uid}/fcmToken. A missing node yields "".
func (f *Firebase) PushToken(ctx context.Context, uid string) (string, error) {
	var token string
	if err := f.tree.Get(ctx, userPath(uid)+"/fcmToken", &token); err != nil {
		return "", fmt.Errorf("read fcmToken: %w", err)
	}
	return token, nil
}

// Ping reads a single key from Users.
func (f *Firebase) Ping(ctx context.Context) error {
	if err := f.tree.Peek(ctx, usersPath); err != nil {
		return fmt.Errorf("firebase ping: %w", err)
	}
	return nil
}

func userPath(uid string) string {
	return usersPath + "/" + uid
}
