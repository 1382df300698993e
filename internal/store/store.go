// Package store reads users and writes notifications against the configured
// backend: Firebase Realtime Database or Postgres. Both expose the same
// tree shape, Users/{uid} with farm activity logs, push token and a
// notifications list.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
)

// Store is the full user store contract.
type Store interface {
	// ListUsers reads the whole user collection once.
	ListUsers(ctx context.Context) ([]farm.User, error)
	// GetUser reads one user; notifications.ErrUserNotFound if absent.
	GetUser(ctx context.Context, uid string) (farm.User, error)
	notifications.Store
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Name identifies the backend in logs and health output.
	Name() string
}

// decodeUser parses one Users/{uid} node. Non-string language/location values are
// treated as absent so the defaults apply.
func decodeUser(uid string, raw json.RawMessage) (farm.User, error) {
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return farm.User{}, fmt.Errorf("decode user %s: %w", uid, err)
	}

	u := farm.User{ID: uid}
	_ = json.Unmarshal(loose["preferredLanguage"], &u.PreferredLanguage)
	_ = json.Unmarshal(loose["location"], &u.Location)

	if logs, ok := loose["farmActivityLogs"]; ok {
		u.ActivityLogs, u.LogsErr = readLogs(logs)
	}
	return u, nil
}

// decodeLogs parses a farmActivityLogs document. Crops or entries that are
// not JSON objects are dropped.
func decodeLogs(raw json.RawMessage) (farm.ActivityLogs, error) {
	var crops map[string]json.RawMessage
	if err := json.Unmarshal(raw, &crops); err != nil {
		return nil, fmt.Errorf("farmActivityLogs: %w", err)
	}

	logs := make(farm.ActivityLogs, len(crops))
	for crop, cropRaw := range crops {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(cropRaw, &entries); err != nil {
			continue
		}
		decoded := make(map[string]farm.RawEntry, len(entries))
		for id, e := range entries {
			var entry farm.RawEntry
			if err := json.Unmarshal(e, &entry); err != nil || entry == nil {
				continue
			}
			decoded[id] = entry
		}
		logs[crop] = decoded
	}
	return logs, nil
}

// readLogs decodes a user's farmActivityLogs. A node that is not an object
// leaves the user with no activities and an error the batch reports.
func readLogs(raw json.RawMessage) (farm.ActivityLogs, error) {
	if len(raw) == 0 {
		return farm.ActivityLogs{}, nil
	}
	logs, err := decodeLogs(raw)
	if err != nil {
		return farm.ActivityLogs{}, fmt.Errorf("%w: %v", farm.ErrUnreadableLogs, err)
	}
	return logs, nil
}

// decodeUsers parses a Users collection. Records that fail to decode are
// logged and skipped so one bad node cannot block the batch.
func decodeUsers(raw map[string]json.RawMessage, logger *slog.Logger) []farm.User {
	users := make([]farm.User, 0, len(raw))
	for uid, node := range raw {
		u, err := decodeUser(uid, node)
		if err != nil {
			logger.Warn("skipping unreadable user record", "user_id", uid, "error", err)
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
