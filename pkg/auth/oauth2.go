package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// TokenPersister stores tokens obtained by an OAuth2Provider, for example
// so that a rotated refresh token survives a restart.
type TokenPersister interface {
	PersistToken(token *oauth2.Token) error
}

// OAuth2Config represents OAuth2 grant settings.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Username     string
	Password     string
	Scopes       []string

	// HTTPClient is used for token requests. Default: http.DefaultClient.
	HTTPClient *http.Client
	// Persister is told about every newly obtained token.
	Persister TokenPersister
	// Logger receives persistence warnings.
	Logger hub.Logger
}

// OAuth2Provider obtains bearer tokens through OAuth2 grants, trying the
// refresh token first, then client credentials, then the password grant.
type OAuth2Provider struct {
	*CredentialCache

	config *OAuth2Config

	mu           sync.Mutex
	refreshToken string
}

// NewOAuth2Provider creates an OAuth2 provider.
func NewOAuth2Provider(config *OAuth2Config, opts ...CacheOption) (*OAuth2Provider, error) {
	if config == nil || config.TokenURL == "" {
		return nil, constants.ErrTokenURLRequired
	}

	p := &OAuth2Provider{
		config:       config,
		refreshToken: config.RefreshToken,
	}

	opts = append([]CacheOption{WithMargin(constants.OAuth2RefreshMargin)}, opts...)
	p.CredentialCache = NewCredentialCache("oauth2", p.fetch, opts...)

	return p, nil
}

// SetToken seeds the cache with a token obtained elsewhere.
func (p *OAuth2Provider) SetToken(accessToken string, expiresAt time.Time) {
	p.Seed(Credential{Encoded: "Bearer " + accessToken, ValidUntil: expiresAt})
}

// CurrentRefreshToken returns the newest refresh token seen.
func (p *OAuth2Provider) CurrentRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.refreshToken
}

func (p *OAuth2Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (p *OAuth2Provider) fetch(ctx context.Context) (Credential, error) {
	if p.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.config.HTTPClient)
	}

	token, err := p.grant(ctx)
	if err != nil {
		return Credential{}, err
	}

	if token.RefreshToken != "" {
		p.mu.Lock()
		p.refreshToken = token.RefreshToken
		p.mu.Unlock()
	}

	if p.config.Persister != nil {
		persistErr := p.config.Persister.PersistToken(token)
		if persistErr != nil && p.config.Logger != nil {
			p.config.Logger.Warn("failed to persist refreshed token", map[string]interface{}{
				"error": persistErr.Error(),
			})
		}
	}

	return Credential{Encoded: token.Type() + " " + token.AccessToken, ValidUntil: token.Expiry}, nil
}

func (p *OAuth2Provider) grant(ctx context.Context) (*oauth2.Token, error) {
	refreshToken := p.CurrentRefreshToken()

	switch {
	case refreshToken != "":
		source := p.oauth2Config().TokenSource(ctx, &oauth2.Token{
			RefreshToken: refreshToken,
			Expiry:       time.Unix(1, 0),
		})

		token, err := source.Token()
		if err != nil {
			return nil, fmt.Errorf("refresh token grant: %w", err)
		}

		return token, nil
	case p.config.ClientID != "" && p.config.ClientSecret != "" && p.config.Username == "":
		cc := &clientcredentials.Config{
			ClientID:     p.config.ClientID,
			ClientSecret: p.config.ClientSecret,
			TokenURL:     p.config.TokenURL,
			Scopes:       p.config.Scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}

		token, err := cc.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("client credentials grant: %w", err)
		}

		return token, nil
	case p.config.Username != "" && p.config.Password != "":
		token, err := p.oauth2Config().PasswordCredentialsToken(ctx, p.config.Username, p.config.Password)
		if err != nil {
			return nil, fmt.Errorf("password grant: %w", err)
		}

		return token, nil
	default:
		return nil, ErrNoGrant
	}
}
