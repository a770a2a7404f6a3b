package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// API endpoint defaults.
const (
	// DefaultAPIEndpoint is the public GitHub REST endpoint.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultAPIVersion is sent as X-GitHub-Api-Version unless overridden.
	DefaultAPIVersion = "2022-11-28"

	// DefaultAccept is the media type requested when the caller sets none.
	DefaultAccept = "application/vnd.github+json"

	// DefaultUserAgent identifies the library to the server.
	DefaultUserAgent = "hubwire/1.0"

	// OAuthTokenPath is the OAuth2 token endpoint path on the web host.
	OAuthTokenPath = "/login/oauth/access_token"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for a single HTTP exchange.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token exchange.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry governor limits.
const (
	// DefaultRateLimitRetryMax bounds the wait-and-retry cycles for primary rate limits.
	DefaultRateLimitRetryMax = 5

	// DefaultAbuseRetryMax bounds the wait-and-retry cycles for secondary limits.
	DefaultAbuseRetryMax = 3

	// DefaultRateLimitFloor is the shortest wait for a rate-limit reset.
	DefaultRateLimitFloor = 1 * time.Second

	// DefaultRateLimitCeiling caps a single rate-limit wait.
	DefaultRateLimitCeiling = 1 * time.Hour

	// DefaultRateLimitJitter is the upper bound of random delay added to a reset wait.
	DefaultRateLimitJitter = 1 * time.Second

	// DefaultAbuseWait is used when a secondary limit carries no timing hint.
	DefaultAbuseWait = 1 * time.Minute

	// DefaultAbuseWaitCeiling caps a single secondary-limit wait.
	DefaultAbuseWaitCeiling = 15 * time.Minute
)

// Transport retry defaults, used only for connection-level failures.
const (
	// DefaultTransportRetryMax disables transport retries unless configured.
	DefaultTransportRetryMax = 0

	// DefaultTransportRetryWaitMin is the minimum backoff between transport retries.
	DefaultTransportRetryWaitMin = 1 * time.Second

	// DefaultTransportRetryWaitMax is the maximum backoff between transport retries.
	DefaultTransportRetryWaitMax = 30 * time.Second
)

// Credential lifetimes.
const (
	// AppJWTLifetime is how long a signed GitHub App JWT is accepted by the server.
	AppJWTLifetime = 8 * time.Minute

	// AppJWTBackdate moves iat into the past to absorb clock drift.
	AppJWTBackdate = 60 * time.Second

	// AppJWTRefreshMargin is how early a JWT is considered stale.
	AppJWTRefreshMargin = 2 * time.Minute

	// InstallationTokenRefreshMargin is how early an installation token is considered stale.
	InstallationTokenRefreshMargin = 5 * time.Minute

	// OAuth2RefreshMargin is how early an OAuth2 access token is considered stale.
	OAuth2RefreshMargin = 1 * time.Minute
)

// Rate-limit resources.
const (
	ResourceCore    = "core"
	ResourceSearch  = "search"
	ResourceGraphQL = "graphql"
)

// Pagination.
const (
	// DefaultPageSize is the per_page value applied by WithPageSize when zero is given.
	DefaultPageSize = 30

	// MaxPageSize is the largest per_page value the server accepts.
	MaxPageSize = 100
)

// Display constants.
const (
	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)
