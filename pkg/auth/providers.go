package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// StaticProvider returns a fixed token.
type StaticProvider struct {
	encoded string
}

// NewStaticProvider returns a provider for a personal access token or any
// other long-lived token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{encoded: "Bearer " + strings.TrimSpace(token)}
}

// EncodedAuthorization implements hub.AuthorizationProvider.
func (p *StaticProvider) EncodedAuthorization(context.Context) (string, error) {
	if p.encoded == "Bearer " {
		return "", &RefreshError{Provider: "static", Err: hub.ErrEmptyCredential}
	}

	return p.encoded, nil
}

// AppJWTProvider signs short-lived GitHub App JWTs.
type AppJWTProvider struct {
	*CredentialCache

	appID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppJWTProvider parses pemKey and returns a provider for appID.
func NewAppJWTProvider(appID string, pemKey []byte, opts ...CacheOption) (*AppJWTProvider, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, constants.ErrAppIDRequired
	}

	if len(pemKey) == 0 {
		return nil, constants.ErrPrivateKeyRequired
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parsing app private key: %w", err)
	}

	p := &AppJWTProvider{appID: appID, key: key, now: time.Now}

	opts = append([]CacheOption{WithMargin(constants.AppJWTRefreshMargin)}, opts...)
	p.CredentialCache = NewCredentialCache("app JWT", p.sign, opts...)
	p.now = p.CredentialCache.now

	return p, nil
}

// AppID returns the App identifier used as issuer.
func (p *AppJWTProvider) AppID() string {
	return p.appID
}

func (p *AppJWTProvider) sign(context.Context) (Credential, error) {
	now := p.now()
	expires := now.Add(constants.AppJWTLifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    p.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-constants.AppJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
	if err != nil {
		return Credential{}, fmt.Errorf("signing app JWT: %w", err)
	}

	return Credential{Encoded: "Bearer " + signed, ValidUntil: expires}, nil
}

// InstallationToken is the result of an installation token exchange.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenFetcher exchanges App credentials for an installation token.
type TokenFetcher func(ctx context.Context) (InstallationToken, error)

// InstallationProvider caches installation access tokens.
type InstallationProvider struct {
	*CredentialCache
}

// NewInstallationProvider returns a provider that calls fetch whenever the
// cached token is within five minutes of expiry.
func NewInstallationProvider(fetch TokenFetcher, opts ...CacheOption) (*InstallationProvider, error) {
	if fetch == nil {
		return nil, ErrNilTokenFetch
	}

	refresh := func(ctx context.Context) (Credential, error) {
		tok, err := fetch(ctx)
		if err != nil {
			return Credential{}, err
		}

		if tok.Token == "" {
			return Credential{}, constants.ErrEmptyInstallToken
		}

		return Credential{Encoded: "Bearer " + tok.Token, ValidUntil: tok.ExpiresAt}, nil
	}

	opts = append([]CacheOption{WithMargin(constants.InstallationTokenRefreshMargin)}, opts...)

	return &InstallationProvider{
		CredentialCache: NewCredentialCache("installation token", refresh, opts...),
	}, nil
}

// InstallationTokenPath returns the exchange path for an installation.
func InstallationTokenPath(installationID int64) string {
	return "/app/installations/" + strconv.FormatInt(installationID, 10) + "/access_tokens"
}
