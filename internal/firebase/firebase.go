// Package firebase builds the Firebase app handle shared by the realtime
// database store and the FCM sender. The handle is created once per process
// by the command and passed down explicitly.
package firebase

import (
	"context"
	"fmt"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// App bundles the Firebase clients the alert job uses. Database is nil when
// no database URL is configured.
type App struct {
	Database  *db.Client
	Messaging *messaging.Client
}

// New initializes the Firebase app. credentialsFile may be empty to use
// Application Default Credentials.
func New(ctx context.Context, credentialsFile, databaseURL string) (*App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := fb.NewApp(ctx, &fb.Config{DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	a := &App{}

	if databaseURL != "" {
		a.Database, err = app.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("init realtime database client: %w", err)
		}
	}

	a.Messaging, err = app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return a, nil
}
