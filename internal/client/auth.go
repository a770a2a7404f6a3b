package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/auth"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// createAuthorizationProvider selects a provider from the credential fields
// of config. A nil provider means requests go out unauthenticated.
func createAuthorizationProvider(config *hub.Config, c *Client) (hub.AuthorizationProvider, error) {
	if config.AuthorizationProvider != nil {
		return config.AuthorizationProvider, nil
	}

	if config.Token != "" {
		return auth.NewStaticProvider(config.Token), nil
	}

	if config.AppID != "" || len(config.PrivateKeyPEM) > 0 || config.InstallationID != 0 {
		return createAppProvider(config, c)
	}

	if needsOAuth2(config) {
		return createOAuth2Provider(config)
	}

	return nil, nil //nolint:nilnil // no credentials configured
}

// createAppProvider returns the App JWT provider, or an installation token
// provider when an installation is selected.
func createAppProvider(config *hub.Config, c *Client) (hub.AuthorizationProvider, error) {
	switch {
	case config.AppID == "":
		return nil, constants.ErrAppIDRequired
	case len(config.PrivateKeyPEM) == 0:
		return nil, constants.ErrPrivateKeyRequired
	case config.InstallationID < 0:
		return nil, fmt.Errorf("%w: %d", constants.ErrInstallationIDInvalid, config.InstallationID)
	}

	appJWT, err := auth.NewAppJWTProvider(config.AppID, config.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("creating app JWT provider: %w", err)
	}

	if config.InstallationID == 0 {
		return appJWT, nil
	}

	installation, err := auth.NewInstallationProvider(c.installationTokenFetcher(appJWT, config.InstallationID))
	if err != nil {
		return nil, fmt.Errorf("creating installation provider: %w", err)
	}

	return installation, nil
}

// installationTokenFetcher exchanges the App JWT for an installation token
// through the governor, so the exchange itself honours rate limits.
func (c *Client) installationTokenFetcher(appJWT *auth.AppJWTProvider, installationID int64) auth.TokenFetcher {
	return func(ctx context.Context) (auth.InstallationToken, error) {
		jwtValue, err := appJWT.EncodedAuthorization(ctx)
		if err != nil {
			return auth.InstallationToken{}, err
		}

		req, err := c.NewRequest(http.MethodPost, auth.InstallationTokenPath(installationID), nil)
		if err != nil {
			return auth.InstallationToken{}, fmt.Errorf("creating installation token request: %w", err)
		}

		ctx = hub.ContextWithCallID(ctx, uuid.NewString())

		prepared, err := c.interceptors.ExecuteRequestInterceptors(ctx, req.WithHeader(constants.HeaderAuthorization, jwtValue))
		if err != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, req, nil, err)

			return auth.InstallationToken{}, err
		}

		resp, err := c.governor.Send(ctx, prepared, nil)

		if interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, prepared, resp, err); interceptErr != nil && err == nil {
			_ = resp.Close()

			return auth.InstallationToken{}, interceptErr
		}

		if err != nil {
			return auth.InstallationToken{}, fmt.Errorf("exchanging installation token: %w", err)
		}

		defer func() { _ = resp.Close() }()

		token, err := hub.DecodeJSON[auth.InstallationToken](resp)
		if err != nil {
			return auth.InstallationToken{}, fmt.Errorf("parsing installation token: %w", err)
		}

		c.logger.Debug("Installation token issued", map[string]interface{}{
			"installation_id": installationID,
			"expires_at":      token.ExpiresAt,
		})

		return token, nil
	}
}

func needsOAuth2(config *hub.Config) bool {
	return config.ClientID != "" || config.RefreshToken != "" || config.Username != ""
}

func createOAuth2Provider(config *hub.Config) (hub.AuthorizationProvider, error) {
	provider, err := auth.NewOAuth2Provider(&auth.OAuth2Config{
		TokenURL:     config.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RefreshToken: config.RefreshToken,
		Username:     config.Username,
		Password:     config.Password,
		Scopes:       config.Scopes,
		HTTPClient:   &http.Client{Timeout: constants.ShortHTTPTimeout},
		Logger:       config.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating OAuth2 provider: %w", err)
	}

	return provider, nil
}
