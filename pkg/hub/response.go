package hub

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// bodyState tracks how the response body has been accessed.
type bodyState int

const (
	bodyUnread bodyState = iota
	bodyConsumed
	bodyBuffered
)

func (s bodyState) String() string {
	switch s {
	case bodyUnread:
		return "unread"
	case bodyConsumed:
		return "read-once-consumed"
	case bodyBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// Response is the result of one HTTP exchange. It owns exactly one body
// stream. Success responses are read-once unless SetBodyRereadable is called
// before the first read; non-success responses are buffered on first read so
// the body can be inspected repeatedly.
//
// A Response belongs to the call that produced it and must be closed exactly
// once by its owner; Close is idempotent.
type Response struct {
	statusCode int
	header     http.Header
	request    *Request

	mu         sync.Mutex
	raw        io.ReadCloser
	hasBody    bool
	state      bodyState
	rereadable bool
	buffer     []byte
	closed     bool
}

// NewResponse creates a response. A nil body marks the body as absent, which
// is distinct from an empty body.
func NewResponse(req *Request, statusCode int, header http.Header, body io.ReadCloser) *Response {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}

	return &Response{
		statusCode: statusCode,
		header:     h,
		request:    req,
		raw:        body,
		hasBody:    body != nil,
		rereadable: !IsSuccessStatus(statusCode),
	}
}

// IsSuccessStatus reports whether code is a success-class status (2xx or 3xx).
func IsSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusBadRequest
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Header returns the first value of the named header.
func (r *Response) Header(name string) string {
	return r.header.Get(name)
}

// HeaderValues returns all values of the named header.
func (r *Response) HeaderValues(name string) []string {
	return append([]string(nil), r.header.Values(name)...)
}

// Headers returns a copy of the header multi-map.
func (r *Response) Headers() http.Header {
	return r.header.Clone()
}

// Request returns the request that produced this response.
func (r *Response) Request() *Request {
	return r.request
}

// HasBody reports whether the exchange carried a body at all.
func (r *Response) HasBody() bool {
	return r.hasBody
}

// IsBodyRereadable reports whether the body will be buffered on first read.
func (r *Response) IsBodyRereadable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rereadable
}

// SetBodyRereadable requests buffering. It fails once the body has been read
// without buffering, because those bytes are gone.
func (r *Response) SetBodyRereadable() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &ProtocolError{Op: "set body rereadable", Err: ErrResponseClosed}
	}

	if r.state == bodyConsumed {
		return &ProtocolError{Op: "set body rereadable", Err: ErrBodyNotRereadable}
	}

	r.rereadable = true

	return nil
}

// Body returns a reader over the decoded body. Read-once bodies return the
// live stream on the first call and fail afterwards; rereadable bodies return
// a fresh reader over the buffered bytes on every call.
func (r *Response) Body() (io.Reader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &ProtocolError{Op: "read body", Err: ErrResponseClosed}
	}

	if !r.hasBody {
		return nil, &ProtocolError{Op: "read body", Err: ErrBodyMissing}
	}

	switch r.state {
	case bodyBuffered:
		return bytes.NewReader(r.buffer), nil
	case bodyConsumed:
		return nil, &ProtocolError{Op: "read body", Err: ErrBodyNotRereadable}
	}

	stream, err := r.decodedStream()
	if err != nil {
		return nil, err
	}

	if !r.rereadable {
		r.state = bodyConsumed

		return stream, nil
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		r.state = bodyConsumed

		return nil, readFailure(r.request, "buffering response body", err)
	}

	r.buffer = data
	r.state = bodyBuffered

	return bytes.NewReader(r.buffer), nil
}

// ReadAll reads the whole decoded body.
func (r *Response) ReadAll() ([]byte, error) {
	stream, err := r.Body()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, readFailure(r.request, "reading response body", err)
	}

	return data, nil
}

// BufferedBody returns the buffered bytes, if any. Buffered bytes survive
// Close until DropBuffer is called.
func (r *Response) BufferedBody() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffer == nil {
		return nil, false
	}

	return bytes.Clone(r.buffer), true
}

// DropBuffer releases buffered bytes. Later reads fail as not rereadable.
func (r *Response) DropBuffer() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = nil
	if r.state == bodyBuffered {
		r.state = bodyConsumed
	}
}

// Close releases the underlying transport resource. Calling Close again is a no-op.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	if r.raw == nil {
		return nil
	}

	err := r.raw.Close()
	r.raw = nil

	if err != nil {
		return fmt.Errorf("closing response body: %w", err)
	}

	return nil
}

// IsClosed reports whether Close has been called.
func (r *Response) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// decodedStream applies Content-Encoding. Callers hold r.mu.
func (r *Response) decodedStream() (io.Reader, error) {
	encoding := strings.ToLower(strings.TrimSpace(r.header.Get(constants.HeaderContentEncoding)))

	switch encoding {
	case "", "identity":
		return r.raw, nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(r.raw)
		if errors.Is(err, io.EOF) {
			return bytes.NewReader(nil), nil
		}

		if err != nil {
			return nil, &ProtocolError{Op: "decode gzip body", Err: err}
		}

		return gzipStream{reader: reader}, nil
	default:
		return nil, &ProtocolError{
			Op:  "decode body",
			Err: fmt.Errorf("%w: %q", ErrUnsupportedContentEncoding, encoding),
		}
	}
}

// gzipStream reports corrupt compressed data as a protocol violation. Errors
// from the underlying stream pass through unchanged.
type gzipStream struct {
	reader *gzip.Reader
}

func (g gzipStream) Read(p []byte) (int, error) {
	n, err := g.reader.Read(p)
	if err != nil && corruptGzip(err) {
		return n, &ProtocolError{Op: "decode gzip body", Err: err}
	}

	return n, err
}

func corruptGzip(err error) bool {
	var corrupt flate.CorruptInputError

	return errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) || errors.As(err, &corrupt)
}

// readFailure classifies an error met while reading a body. Decoding
// failures stay protocol violations; anything else is a transport failure.
func readFailure(req *Request, op string, err error) error {
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr
	}

	return NewTransportError(req, fmt.Errorf("%s: %w", op, err))
}
