package hub

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// Request is an immutable logical request. The With* methods return modified
// copies; the receiver is never changed, so a Request can be replayed on
// every retry attempt and shared between goroutines.
type Request struct {
	method  string
	url     *url.URL
	header  http.Header
	body    []byte
	hasBody bool
}

// NewRequest creates a request for an absolute URL. A nil body means the
// request has no body; a non-nil empty slice is an empty body.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	if method == "" {
		method = http.MethodGet
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing request URL: %w", err)
	}

	if !parsed.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrRelativeURL, rawURL)
	}

	req := &Request{
		method: strings.ToUpper(method),
		url:    parsed,
		header: make(http.Header),
	}

	if body != nil {
		req.body = bytes.Clone(body)
		req.hasBody = true
	}

	return req, nil
}

func (r *Request) clone() *Request {
	u := *r.url
	if r.url.User != nil {
		user := *r.url.User
		u.User = &user
	}

	return &Request{
		method:  r.method,
		url:     &u,
		header:  r.header.Clone(),
		body:    r.body,
		hasBody: r.hasBody,
	}
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.method
}

// URL returns a copy of the target URL.
func (r *Request) URL() *url.URL {
	u := *r.url

	return &u
}

// Header returns the first value of the named header.
func (r *Request) Header(name string) string {
	return r.header.Get(name)
}

// HeaderValues returns all values of the named header in insertion order.
func (r *Request) HeaderValues(name string) []string {
	return append([]string(nil), r.header.Values(name)...)
}

// Headers returns a copy of the header multi-map.
func (r *Request) Headers() http.Header {
	return r.header.Clone()
}

// HasBody reports whether a body is present, even an empty one.
func (r *Request) HasBody() bool {
	return r.hasBody
}

// Body returns a fresh reader over the body bytes, or nil without a body.
func (r *Request) Body() io.Reader {
	if !r.hasBody {
		return nil
	}

	return bytes.NewReader(r.body)
}

// BodyBytes returns a copy of the body bytes.
func (r *Request) BodyBytes() []byte {
	if !r.hasBody {
		return nil
	}

	return bytes.Clone(r.body)
}

// ContentType returns the Content-Type header.
func (r *Request) ContentType() string {
	return r.header.Get(constants.HeaderContentType)
}

// String returns "METHOD URL".
func (r *Request) String() string {
	return r.method + " " + r.url.String()
}

// WithHeader returns a copy with the named header replaced by values.
func (r *Request) WithHeader(name string, values ...string) *Request {
	c := r.clone()
	c.header.Del(name)

	for _, v := range values {
		c.header.Add(name, v)
	}

	return c
}

// WithAddedHeader returns a copy with value appended to the named header.
func (r *Request) WithAddedHeader(name, value string) *Request {
	c := r.clone()
	c.header.Add(name, value)

	return c
}

// WithoutHeader returns a copy without the named header.
func (r *Request) WithoutHeader(name string) *Request {
	c := r.clone()
	c.header.Del(name)

	return c
}

// WithContentType returns a copy with the Content-Type header set.
func (r *Request) WithContentType(contentType string) *Request {
	return r.WithHeader(constants.HeaderContentType, contentType)
}

// WithURL returns a copy targeting rawURL. Relative references are resolved
// against the current URL.
func (r *Request) WithURL(rawURL string) (*Request, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing request URL: %w", err)
	}

	c := r.clone()
	c.url = r.url.ResolveReference(parsed)

	return c, nil
}

// WithQuery returns a copy with the query parameter key set to value.
func (r *Request) WithQuery(key, value string) *Request {
	c := r.clone()
	query := c.url.Query()
	query.Set(key, value)
	c.url.RawQuery = query.Encode()

	return c
}

// WithQueryInt is WithQuery for integer values.
func (r *Request) WithQueryInt(key string, value int) *Request {
	return r.WithQuery(key, strconv.Itoa(value))
}
