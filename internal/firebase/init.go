package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"io.winapps.huddle/internal/config"
)

// InitFirebase initializes and returns a Firebase app instance
func InitFirebase(ctx context.Context, cfg config.Firebase) (*firebase.App, error) {
	appConfig := &firebase.Config{
		ProjectID: cfg.ProjectID,
	}

	var opts []option.ClientOption
	if cfg.ServiceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountPath))
	}
	// Without a service account file, application default credentials are
	// used (Google Cloud deployments).

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// AuthVerifier resolves Firebase ID tokens to user ids. The auth middleware
// falls back to it for sessions it cannot find locally.
type AuthVerifier struct {
	client *auth.Client
}

func NewAuthVerifier(ctx context.Context, app *firebase.App) (*AuthVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase Auth client: %w", err)
	}
	return &AuthVerifier{client: client}, nil
}

func (v *AuthVerifier) VerifyIDToken(ctx context.Context, token string) (string, error) {
	idToken, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("verifying id token: %w", err)
	}
	return idToken.UID, nil
}
