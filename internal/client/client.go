package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/internal/governor"
	"github.com/fivetwenty-io/hubwire/internal/http"
	"github.com/fivetwenty-io/hubwire/internal/observe"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// Static errors for err113 compliance.
var (
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrInvalidAPIEndpoint  = errors.New("API endpoint must be an absolute http(s) URL")
)

// Client implements the hub.Client interface.
type Client struct {
	baseURL      string
	governor     *governor.Governor
	authProvider hub.AuthorizationProvider
	interceptors *hub.InterceptorChain
	timeout      time.Duration
	logger       hub.Logger
}

// createConnectorOptions builds default connector options from config.
func createConnectorOptions(config *hub.Config) []http.Option {
	var opts []http.Option

	if config.Logger != nil {
		opts = append(opts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.TransportRetryMax > 0 {
		retryWaitMin := constants.DefaultTransportRetryWaitMin
		retryWaitMax := constants.DefaultTransportRetryWaitMax

		if config.TransportRetryWaitMin > 0 {
			retryWaitMin = config.TransportRetryWaitMin
		}

		if config.TransportRetryWaitMax > 0 {
			retryWaitMax = config.TransportRetryWaitMax
		}

		opts = append(opts, http.WithRetryConfig(config.TransportRetryMax, retryWaitMin, retryWaitMax))
	}

	return opts
}

// createGovernorOptions builds retry governor options from config.
func createGovernorOptions(config *hub.Config, logger hub.Logger, telemetry *observe.Telemetry) []governor.Option {
	opts := []governor.Option{
		governor.WithLogger(logger),
		governor.WithTelemetry(telemetry),
		governor.WithRateLimitHandler(config.RateLimitHandler),
		governor.WithAbuseLimitHandler(config.AbuseLimitHandler),
	}

	if config.RateLimitRetryMax != 0 {
		opts = append(opts, governor.WithRateLimitRetryMax(max(config.RateLimitRetryMax, 0)))
	}

	if config.AbuseRetryMax != 0 {
		opts = append(opts, governor.WithAbuseRetryMax(max(config.AbuseRetryMax, 0)))
	}

	return opts
}

// defaultHeaders are applied to every request that does not set them.
func defaultHeaders(config *hub.Config) map[string]string {
	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = constants.DefaultAPIVersion
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = constants.DefaultUserAgent
	}

	return map[string]string{
		constants.HeaderAccept:     constants.DefaultAccept,
		constants.HeaderAPIVersion: apiVersion,
		constants.HeaderUserAgent:  userAgent,
	}
}

// New creates a new client, selecting an authorization provider from the
// credential fields of config.
func New(config *hub.Config) (*Client, error) {
	return build(config, nil)
}

// NewWithAuthorizationProvider creates a new client with a custom provider,
// ignoring the credential fields of config.
func NewWithAuthorizationProvider(config *hub.Config, provider hub.AuthorizationProvider) (*Client, error) {
	return build(config, func(*Client) (hub.AuthorizationProvider, error) {
		return provider, nil
	})
}

func build(config *hub.Config, selectProvider func(*Client) (hub.AuthorizationProvider, error)) (*Client, error) {
	if config == nil {
		return nil, hub.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, ErrAPIEndpointRequired
	}

	baseURL, err := normalizeBaseURL(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = hub.NopLogger{}
	}

	telemetry, err := observe.New(config.TracerProvider, config.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry: %w", err)
	}

	connector := config.Connector
	if connector == nil {
		connector = http.NewConnector(createConnectorOptions(config)...)
	}

	client := &Client{
		baseURL:      baseURL,
		interceptors: hub.NewInterceptorChain(),
		timeout:      config.Timeout,
		logger:       logger,
	}

	if selectProvider == nil {
		selectProvider = func(c *Client) (hub.AuthorizationProvider, error) {
			return createAuthorizationProvider(config, c)
		}
	}

	provider, err := selectProvider(client)
	if err != nil {
		return nil, fmt.Errorf("creating authorization provider: %w", err)
	}

	client.authProvider = provider

	govOpts := createGovernorOptions(config, logger, telemetry)
	if invalidator, ok := provider.(hub.CredentialInvalidator); ok {
		govOpts = append(govOpts, governor.WithInvalidator(invalidator))
	}

	client.governor = governor.New(connector, govOpts...)

	client.interceptors.AddRequestInterceptor(hub.HeaderInterceptor(defaultHeaders(config)))

	for _, interceptor := range config.RequestInterceptors {
		client.interceptors.AddRequestInterceptor(interceptor)
	}

	for _, interceptor := range config.ResponseInterceptors {
		client.interceptors.AddResponseInterceptor(interceptor)
	}

	return client, nil
}

func normalizeBaseURL(endpoint string) (string, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAPIEndpoint, endpoint)
	}

	return endpoint, nil
}

// AuthorizationProvider returns the provider attached to requests, or nil.
func (c *Client) AuthorizationProvider() hub.AuthorizationProvider {
	return c.authProvider
}

// BaseURL implements hub.Client.BaseURL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RateLimit implements hub.Client.RateLimit.
func (c *Client) RateLimit(resource string) (hub.RateLimitSnapshot, bool) {
	return c.governor.Tracker().Get(resource)
}

// RateLimits returns every known snapshot keyed by resource.
func (c *Client) RateLimits() map[string]hub.RateLimitSnapshot {
	return c.governor.Tracker().All()
}

// NewRequest implements hub.Client.NewRequest.
func (c *Client) NewRequest(method, path string, body []byte) (*hub.Request, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return hub.NewRequest(method, path, body)
	}

	return hub.NewRequest(method, c.baseURL+"/"+strings.TrimPrefix(path, "/"), body)
}

// Dispatch implements hub.Dispatcher. The returned response is a success;
// with a configured Timeout its body is buffered before the deadline ends.
func (c *Client) Dispatch(ctx context.Context, req *hub.Request) (*hub.Response, error) {
	if req == nil {
		return nil, hub.ErrNilRequest
	}

	callID := uuid.NewString()
	ctx = hub.ContextWithCallID(ctx, callID)

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prepared, err := c.interceptors.ExecuteRequestInterceptors(ctx, req)
	if err != nil {
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, req, nil, err)

		return nil, err
	}

	c.logger.Debug("Dispatching request", map[string]interface{}{
		"call_id": callID,
		"method":  prepared.Method(),
		"url":     prepared.URL().String(),
	})

	resp, err := c.governor.Send(ctx, prepared, c.authorize)

	if interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, prepared, resp, err); interceptErr != nil && err == nil {
		_ = resp.Close()

		return nil, interceptErr
	}

	if err != nil {
		c.logger.Debug("Request failed", map[string]interface{}{
			"call_id": callID,
			"error":   err.Error(),
		})

		return nil, err
	}

	if c.timeout > 0 {
		if bufferErr := bufferBody(resp); bufferErr != nil {
			_ = resp.Close()

			return nil, bufferErr
		}
	}

	c.logger.Debug("Request completed", map[string]interface{}{
		"call_id":     callID,
		"status_code": resp.StatusCode(),
	})

	return resp, nil
}

// bufferBody reads the body into memory so it outlives the call deadline.
func bufferBody(resp *hub.Response) error {
	if !resp.HasBody() {
		return nil
	}

	if err := resp.SetBodyRereadable(); err != nil {
		return err
	}

	_, err := resp.Body()

	return err
}

// authorize attaches the provider's credential unless the request already
// carries an Authorization header.
func (c *Client) authorize(ctx context.Context, req *hub.Request) (*hub.Request, error) {
	if c.authProvider == nil || req.Header(constants.HeaderAuthorization) != "" {
		return req, nil
	}

	value, err := c.authProvider.EncodedAuthorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorizing %s %s: %w", req.Method(), req.URL().Path, err)
	}

	return req.WithHeader(constants.HeaderAuthorization, value), nil
}
