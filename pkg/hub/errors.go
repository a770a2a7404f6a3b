package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Error classes. Every error returned by the library matches exactly one of
// these through errors.Is.
var (
	ErrTransport               = errors.New("transport error")
	ErrRateLimitExhausted      = errors.New("rate limit exhausted")
	ErrAbuseDetected           = errors.New("secondary rate limit detected")
	ErrNotFound                = errors.New("resource not found")
	ErrCredentialRefreshFailed = errors.New("credential refresh failed")
	ErrProtocolViolation       = errors.New("protocol violation")
)

// Body lifecycle and iteration errors. These are reported wrapped in a
// ProtocolError, except ErrNoMorePages.
var (
	ErrResponseClosed             = errors.New("response is closed")
	ErrBodyMissing                = errors.New("response has no body")
	ErrBodyNotRereadable          = errors.New("response body is not rereadable")
	ErrUnsupportedContentEncoding = errors.New("unsupported content encoding")
	ErrIteratorFailed             = errors.New("page iterator failed")
	ErrNoMorePages                = errors.New("no more pages")
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrRelativeURL     = errors.New("request URL must be absolute")
	ErrNilRequest      = errors.New("request is nil")
	ErrNilDecoder      = errors.New("decoder is nil")
	ErrEmptyCredential = errors.New("authorization provider returned an empty credential")
)

// TransportError reports a network or I/O failure, including deadlines and
// cancellation. It is never retried by the governor.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("transport error: %v", e.Err)
	}

	return fmt.Sprintf("%s %s: transport error: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports the transport error class.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Timeout reports whether the failure was a deadline or timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// NewTransportError wraps err for req.
func NewTransportError(req *Request, err error) *TransportError {
	if req == nil {
		return &TransportError{Err: err}
	}

	return &TransportError{Method: req.Method(), URL: req.URL().String(), Err: err}
}

// ProtocolError reports a malformed or unsupported response, or misuse of a
// response body.
type ProtocolError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports the protocol violation class.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// HTTPError is a non-success response that the governor did not resolve.
type HTTPError struct {
	StatusCode       int         `json:"status_code"                 yaml:"status_code"`
	Method           string      `json:"method"                      yaml:"method"`
	URL              string      `json:"url"                         yaml:"url"`
	Message          string      `json:"message,omitempty"           yaml:"message,omitempty"`
	DocumentationURL string      `json:"documentation_url,omitempty" yaml:"documentation_url,omitempty"`
	Header           http.Header `json:"-"                           yaml:"-"`
	Body             []byte      `json:"-"                           yaml:"-"`
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	status := fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, status)
	}

	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, status, e.Message)
}

// Is matches ErrNotFound for 404 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// errorPayload is the conventional JSON error body.
type errorPayload struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// NewHTTPError builds an HTTPError from a non-success response. The response
// body is read through its rereadable buffer, so the response stays usable.
func NewHTTPError(resp *Response) *HTTPError {
	httpErr := &HTTPError{
		StatusCode: resp.StatusCode(),
		Header:     resp.Headers(),
	}

	if req := resp.Request(); req != nil {
		httpErr.Method = req.Method()
		httpErr.URL = req.URL().String()
	}

	data, err := resp.ReadAll()
	if err != nil {
		return httpErr
	}

	httpErr.Body = data

	var payload errorPayload
	if json.Unmarshal(data, &payload) == nil {
		httpErr.Message = payload.Message
		httpErr.DocumentationURL = payload.DocumentationURL
	}

	return httpErr
}

// RateLimitError reports that the primary rate limit could not be waited out
// within the configured budget, or that the policy chose to fail.
type RateLimitError struct {
	Snapshot RateLimitSnapshot
	Attempts int
	Reason   string
	Last     *HTTPError
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("rate limit exhausted after %d attempt(s)", e.Attempts)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if !e.Snapshot.ResetAt.IsZero() {
		msg += fmt.Sprintf(" (resource %s resets at %s)", e.Snapshot.Resource, e.Snapshot.ResetAt.UTC().Format(time.RFC3339))
	}

	return msg
}

func (e *RateLimitError) Unwrap() error {
	if e.Last == nil {
		return nil
	}

	return e.Last
}

// Is reports the rate-limit class.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExhausted
}

// AbuseError reports a secondary rate limit that the policy declined to wait
// out, or that persisted past the configured budget.
type AbuseError struct {
	Attempts   int
	Reason     string
	RetryAfter time.Duration
	Last       *HTTPError
}

// Error implements the error interface.
func (e *AbuseError) Error() string {
	msg := fmt.Sprintf("secondary rate limit after %d attempt(s)", e.Attempts)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

func (e *AbuseError) Unwrap() error {
	if e.Last == nil {
		return nil
	}

	return e.Last
}

// Is reports the abuse class.
func (e *AbuseError) Is(target error) bool {
	return target == ErrAbuseDetected
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited checks if the error reports an exhausted primary rate limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimitExhausted)
}

// IsAbuse checks if the error reports a secondary rate limit.
func IsAbuse(err error) bool {
	return errors.Is(err, ErrAbuseDetected)
}

// IsTransport checks if the error is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsProtocolViolation checks if the error reports a malformed response or body misuse.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	return 0
}
