// Package http provides the default hub.Connector, built on go-retryablehttp.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// Connector sends one HTTP exchange per call. It never retries on status
// codes; connection failures are retried only when a transport retry budget
// is configured.
type Connector struct {
	client    *retryablehttp.Client
	logger    hub.Logger
	debug     bool
	userAgent string
}

// Option configures the Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger hub.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Connector) {
		c.debug = debug
	}
}

// WithTimeout sets the timeout of a single exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Connector) {
		if timeout > 0 {
			c.client.HTTPClient.Timeout = timeout
		}
	}
}

// WithRetryConfig sets the connection-level retry budget and backoff bounds.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Connector) {
		c.client.RetryMax = max(maxRetries, 0)
		if waitMin > 0 {
			c.client.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.client.RetryWaitMax = waitMax
		}
	}
}

// WithUserAgent sets the User-Agent sent when the request has none.
func WithUserAgent(userAgent string) Option {
	return func(c *Connector) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client, for custom transports or TLS.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		if client != nil {
			c.client.HTTPClient = client
		}
	}
}

// NewConnector creates a new Connector.
func NewConnector(opts ...Option) *Connector {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultTransportRetryMax
	retryClient.RetryWaitMin = constants.DefaultTransportRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultTransportRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.CheckRetry = connectionRetryPolicy
	retryClient.ErrorHandler = passthroughErrorHandler
	retryClient.Logger = nil

	c := &Connector{
		client:    retryClient,
		userAgent: constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger != nil {
		retryClient.Logger = &leveledLogger{logger: c.logger}
		retryClient.RequestLogHook = c.logRetry
	}

	return c
}

// Send implements hub.Connector.
func (c *Connector) Send(ctx context.Context, req *hub.Request) (*hub.Response, error) {
	if req == nil {
		return nil, hub.ErrNilRequest
	}

	var body interface{}
	if req.HasBody() {
		body = req.BodyBytes()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method(), req.URL().String(), body)
	if err != nil {
		return nil, hub.NewTransportError(req, fmt.Errorf("creating request: %w", err))
	}

	for name, values := range req.Headers() {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}

	if httpReq.Header.Get(constants.HeaderAcceptEncoding) == "" {
		httpReq.Header.Set(constants.HeaderAcceptEncoding, "gzip")
	}

	if httpReq.Header.Get(constants.HeaderUserAgent) == "" {
		httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":  req.Method(),
			"url":     req.URL().String(),
			"headers": redactHeaders(httpReq.Header),
		})
	}

	start := time.Now()

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}

		return nil, hub.NewTransportError(req, err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"duration":    time.Since(start).String(),
			"headers":     resp.Header,
		})
	}

	respBody := resp.Body
	if bodyAbsent(resp) {
		if respBody != nil {
			_ = respBody.Close()
		}

		respBody = nil
	}

	return hub.NewResponse(req, resp.StatusCode, resp.Header, respBody), nil
}

// bodyAbsent reports whether the exchange carried no body at all, as opposed
// to an empty one.
func bodyAbsent(resp *http.Response) bool {
	if resp.Body == nil || resp.Body == http.NoBody {
		return true
	}

	if resp.ContentLength != 0 {
		return false
	}

	return resp.StatusCode == http.StatusNoContent ||
		resp.StatusCode == http.StatusNotModified ||
		resp.Request != nil && resp.Request.Method == http.MethodHead
}

func (c *Connector) logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}

	c.logger.Warn("HTTP Retry", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"attempt": attempt,
	})
}

// connectionRetryPolicy retries only failed connections. Status codes are the
// governor's concern.
func connectionRetryPolicy(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err == nil {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, nil, err)
}

// passthroughErrorHandler returns the last response and error as they are,
// instead of closing the body and replacing the error.
func passthroughErrorHandler(resp *http.Response, err error, _ int) (*http.Response, error) {
	return resp, err
}

func redactHeaders(header http.Header) http.Header {
	out := header.Clone()
	if out.Get(constants.HeaderAuthorization) != "" {
		out.Set(constants.HeaderAuthorization, constants.MaskedSecret)
	}

	return out
}
