// Package firebaseapp builds the shared Firebase application used for the
// Firestore document store and Cloud Messaging.
package firebaseapp

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewApp initializes a Firebase app. projectID may be empty when the
// credentials file carries it.
func NewApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewFirestore returns a Firestore client bound to app.
func NewFirestore(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}
	log.Println("[Firebase] Firestore client initialized")
	return client, nil
}
