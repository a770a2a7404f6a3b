package hubclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/hubwire/internal/client"
	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// publicAPIHost is the API host of github.com, whose OAuth endpoints live on
// a different host.
const publicAPIHost = "api.github.com"

// New creates a new client. The caller's config is not modified.
func New(ctx context.Context, config *hub.Config) (hub.Client, error) {
	if config == nil {
		return nil, hub.ErrConfigRequired
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	cfg := *config

	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint)

	if needsTokenURL(&cfg) {
		tokenURL, err := defaultTokenURL(cfg.APIEndpoint)
		if err != nil {
			return nil, err
		}

		cfg.TokenURL = tokenURL
	}

	c, err := client.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// normalizeEndpoint defaults the endpoint, adds a missing scheme and drops a
// trailing slash.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return constants.DefaultAPIEndpoint
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

// needsTokenURL checks if the config selects an OAuth2 grant without a token URL.
func needsTokenURL(config *hub.Config) bool {
	if config.TokenURL != "" || config.AuthorizationProvider != nil || config.Token != "" || config.AppID != "" {
		return false
	}

	return config.ClientID != "" || config.RefreshToken != "" || config.Username != ""
}

// defaultTokenURL derives the OAuth2 token endpoint from the API endpoint:
// github.com for the public API, the same host for Enterprise Server.
func defaultTokenURL(apiEndpoint string) (string, error) {
	u, err := url.Parse(apiEndpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", client.ErrInvalidAPIEndpoint, apiEndpoint)
	}

	host := u.Host
	if strings.EqualFold(host, publicAPIHost) {
		host = "github.com"
	}

	return u.Scheme + "://" + host + constants.OAuthTokenPath, nil
}

// TokenURL returns the OAuth2 token endpoint New would derive for an API
// endpoint.
func TokenURL(apiEndpoint string) (string, error) {
	return defaultTokenURL(normalizeEndpoint(apiEndpoint))
}

// NewWithEndpoint creates a new client with just an API endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (hub.Client, error) {
	return New(ctx, &hub.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with an API endpoint and a static token.
func NewWithToken(ctx context.Context, endpoint, token string) (hub.Client, error) {
	return New(ctx, &hub.Config{
		APIEndpoint: endpoint,
		Token:       token,
	})
}

// NewWithApp creates a new client authenticating as a GitHub App
// installation. An installationID of zero authenticates as the App itself.
func NewWithApp(ctx context.Context, endpoint, appID string, privateKeyPEM []byte, installationID int64) (hub.Client, error) {
	return New(ctx, &hub.Config{
		APIEndpoint:    endpoint,
		AppID:          appID,
		PrivateKeyPEM:  privateKeyPEM,
		InstallationID: installationID,
	})
}

// NewWithRefreshToken creates a new client using the OAuth2 refresh-token grant.
func NewWithRefreshToken(ctx context.Context, endpoint, clientID, clientSecret, refreshToken string) (hub.Client, error) {
	return New(ctx, &hub.Config{
		APIEndpoint:  endpoint,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
	})
}
