package constants

// Request and response header names interpreted by the core.
const (
	HeaderAuthorization   = "Authorization"
	HeaderAccept          = "Accept"
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentType     = "Content-Type"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"
	HeaderAPIVersion      = "X-GitHub-Api-Version"
	HeaderLink            = "Link"
	HeaderRetryAfter      = "Retry-After"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitUsed      = "X-RateLimit-Used"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRateLimitResource  = "X-RateLimit-Resource"

	// HeaderLimitedBy marks a secondary-limit rejection.
	HeaderLimitedBy = "Gh-Limited-By"
)
