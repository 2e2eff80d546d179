package firebase

import (
	"context"
	"fmt"

	fbapp "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"oysloe/pkg/config"
	"oysloe/pkg/logger"
)

// NewApp builds the Firebase app once at startup. Credentials come from
// FIREBASE_CREDENTIALS_JSON, then FIREBASE_CREDENTIALS_FILE, then ambient ADC.
func NewApp(ctx context.Context, cfg *config.Config) (*fbapp.App, error) {
	var opts []option.ClientOption
	switch {
	case cfg.FirebaseCredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
		logger.Info("Using Firebase credentials from environment")
	case cfg.FirebaseCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
		logger.Info("Using Firebase credentials file %s", cfg.FirebaseCredentialsFile)
	default:
		logger.Warn("No Firebase credentials configured, falling back to application default credentials")
	}

	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	return app, nil
}
