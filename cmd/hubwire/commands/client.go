package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/auth"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
	"github.com/fivetwenty-io/hubwire/pkg/hubclient"
)

// newLogger returns a text logger on stderr, at debug level when verbose.
func newLogger() hub.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	return hub.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// clientConfig builds a hub.Config from the CLI configuration.
func clientConfig(config *Config) (*hub.Config, error) {
	hubConfig := &hub.Config{
		APIEndpoint: config.API,
		Logger:      newLogger(),
		Debug:       viper.GetBool("verbose"),
	}

	switch {
	case config.Token != "" && config.RefreshToken == "":
		hubConfig.Token = config.Token
	case config.RefreshToken != "" || config.ClientID != "":
		provider, err := oauth2Provider(config)
		if err != nil {
			return nil, err
		}

		hubConfig.AuthorizationProvider = provider
	case config.AppID != "":
		if config.PrivateKeyPath == "" {
			return nil, constants.ErrPrivateKeyRequired
		}

		pemKey, err := os.ReadFile(config.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		hubConfig.AppID = config.AppID
		hubConfig.PrivateKeyPEM = pemKey
		hubConfig.InstallationID = config.InstallationID
	}

	return hubConfig, nil
}

// oauth2Provider creates a provider that writes refreshed tokens back to the
// config file and starts from the stored access token while it is valid.
func oauth2Provider(config *Config) (*auth.OAuth2Provider, error) {
	tokenURL := config.TokenURL
	if tokenURL == "" {
		derived, err := hubclient.TokenURL(config.API)
		if err != nil {
			return nil, err
		}

		tokenURL = derived
	}

	provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RefreshToken: config.RefreshToken,
		Persister:    NewConfigPersister(),
		Logger:       newLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth2 provider: %w", err)
	}

	if config.Token != "" && config.TokenExpiresAt != nil && time.Now().Before(*config.TokenExpiresAt) {
		provider.SetToken(config.Token, *config.TokenExpiresAt)
	}

	return provider, nil
}

// createClient creates a client from the loaded configuration.
func createClient(ctx context.Context) (hub.Client, error) {
	hubConfig, err := clientConfig(loadConfig())
	if err != nil {
		return nil, err
	}

	return newClient(ctx, hubConfig)
}

func newClient(ctx context.Context, hubConfig *hub.Config) (hub.Client, error) {
	client, err := hubclient.New(ctx, hubConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// requireCredentials fails when the configuration carries no credential.
func requireCredentials() error {
	config := loadConfig()
	if config.Token == "" && config.RefreshToken == "" && config.ClientID == "" && config.AppID == "" {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, constants.ErrNoCredentials)
	}

	return nil
}
