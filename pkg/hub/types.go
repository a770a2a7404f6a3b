package hub

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher sends a logical request through authorization and the retry
// governor and returns a success response. Non-success outcomes are errors.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (*Response, error)
}

// Client is the request orchestrator exposed to embedders.
type Client interface {
	Dispatcher

	// NewRequest builds a request for a path relative to the API endpoint.
	// Absolute URLs are used as given.
	NewRequest(method, path string, body []byte) (*Request, error)

	// RateLimit returns the newest known snapshot for a rate-limit resource.
	RateLimit(resource string) (RateLimitSnapshot, bool)

	// BaseURL returns the normalized API endpoint.
	BaseURL() string
}

// AuthorizationProvider produces the value of the Authorization header.
type AuthorizationProvider interface {
	EncodedAuthorization(ctx context.Context) (string, error)
}

// AuthorizationProviderFunc adapts a function to AuthorizationProvider.
type AuthorizationProviderFunc func(ctx context.Context) (string, error)

// EncodedAuthorization calls f.
func (f AuthorizationProviderFunc) EncodedAuthorization(ctx context.Context) (string, error) {
	return f(ctx)
}

// CredentialInvalidator is implemented by providers that cache credentials
// and can be told to discard them.
type CredentialInvalidator interface {
	Invalidate()
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a hub.Client.
//
// # Authentication precedence
//
// The following precedence is applied by hubclient.New:
//  1. AuthorizationProvider: used as given.
//  2. Token: a static Bearer token.
//  3. AppID + PrivateKeyPEM + InstallationID: installation tokens obtained
//     with a GitHub App JWT and refreshed before they expire.
//  4. AppID + PrivateKeyPEM: the App JWT itself.
//  5. ClientID/ClientSecret, RefreshToken or Username/Password with TokenURL:
//     OAuth2 grants, tried in the order refresh token, client credentials,
//     password.
//  6. No credentials: requests are sent without authentication.
//
// An Authorization header set explicitly on a request always wins.
//
// # Timeouts and retries
//
// Timeout bounds a whole logical call, including governor waits. Rate-limit
// and secondary-limit retries are bounded by RateLimitRetryMax and
// AbuseRetryMax. TransportRetryMax enables connection-level retries in the
// default connector only; it is 0 by default.
type Config struct {
	// APIEndpoint: base URL, "https://api.github.com" when empty.
	APIEndpoint string

	// Connector replaces the default HTTP connector.
	Connector Connector

	// AuthorizationProvider overrides every credential field below.
	AuthorizationProvider AuthorizationProvider

	// Token: a personal access token or other static token.
	Token string

	// AppID and PrivateKeyPEM identify a GitHub App.
	AppID         string
	PrivateKeyPEM []byte
	// InstallationID selects installation tokens for the App.
	InstallationID int64

	// OAuth2 grant settings.
	ClientID     string
	ClientSecret string
	RefreshToken string
	Username     string
	Password     string
	TokenURL     string
	Scopes       []string

	// RateLimitHandler decides how primary rate limits are handled.
	// Default: wait for the reset.
	RateLimitHandler RateLimitHandler
	// AbuseLimitHandler decides how secondary limits are handled.
	// Default: wait for Retry-After.
	AbuseLimitHandler AbuseLimitHandler
	// RateLimitRetryMax bounds rate-limit wait cycles. Zero selects the
	// default of 5; a negative value allows no waits at all.
	RateLimitRetryMax int
	// AbuseRetryMax bounds secondary-limit wait cycles. Zero selects the
	// default of 3; a negative value allows no waits at all.
	AbuseRetryMax int

	// Timeout: per-call deadline. Zero means the caller's context decides.
	Timeout time.Duration
	// HTTPTimeout: timeout of a single exchange in the default connector.
	HTTPTimeout time.Duration
	// TransportRetryMax: connection-level retries in the default connector.
	TransportRetryMax     int
	TransportRetryWaitMin time.Duration
	TransportRetryWaitMax time.Duration

	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// APIVersion overrides the X-GitHub-Api-Version header.
	APIVersion string

	// Debug: enables verbose request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Interceptors run around every dispatched request.
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
}
