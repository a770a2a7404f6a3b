package constants

import "errors"

// Configuration errors.
var (
	ErrInvalidOutputFormat = errors.New("invalid output format, expected table, json or yaml")
	ErrNoCredentials       = errors.New("no credentials configured")
)

// Credential configuration errors.
var (
	ErrAppIDRequired         = errors.New("app ID is required")
	ErrPrivateKeyRequired    = errors.New("private key is required")
	ErrInstallationIDInvalid = errors.New("installation ID must be positive")
	ErrTokenURLRequired      = errors.New("token URL is required for OAuth2 grants")
	ErrEmptyInstallToken     = errors.New("installation token response did not contain a token")
)
