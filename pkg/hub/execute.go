package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decoder turns a success response into a value. The response is closed by
// the caller after the decoder returns.
type Decoder[T any] func(resp *Response) (T, error)

// Execute dispatches req and decodes the response. A not-found outcome is
// reported as the zero value with found == false and a nil error; every other
// failure is returned as is.
func Execute[T any](ctx context.Context, d Dispatcher, req *Request, decode Decoder[T]) (T, bool, error) {
	value, err := Fetch(ctx, d, req, decode)
	if err != nil {
		var zero T
		if IsNotFound(err) {
			return zero, false, nil
		}

		return zero, false, err
	}

	return value, true, nil
}

// Fetch dispatches req and decodes the response. Unlike Execute, a not-found
// outcome is an error matching ErrNotFound.
func Fetch[T any](ctx context.Context, d Dispatcher, req *Request, decode Decoder[T]) (result T, err error) {
	var zero T

	if req == nil {
		return zero, ErrNilRequest
	}

	if decode == nil {
		return zero, ErrNilDecoder
	}

	resp, err := d.Dispatch(ctx, req)
	if err != nil {
		return zero, err
	}

	defer func() {
		closeErr := resp.Close()
		if err == nil && closeErr != nil {
			result, err = zero, NewTransportError(req, closeErr)
		}
	}()

	return decode(resp)
}

// DecodeJSON decodes the body as JSON into T. An absent or empty body yields
// the zero value.
func DecodeJSON[T any](resp *Response) (T, error) {
	var out T

	if !resp.HasBody() {
		return out, nil
	}

	body, err := resp.Body()
	if err != nil {
		return out, err
	}

	err = json.NewDecoder(body).Decode(&out)
	if errors.Is(err, io.EOF) {
		return out, nil
	}

	if err != nil {
		return out, &ProtocolError{Op: "decode JSON body", Err: err}
	}

	return out, nil
}

// DecodeJSONItems is a PageDecoder for endpoints that return a JSON array.
func DecodeJSONItems[T any](resp *Response) ([]T, error) {
	return DecodeJSON[[]T](resp)
}

// DecodeJSONField returns a PageDecoder for endpoints that wrap their items
// in an object field, such as search results under "items".
func DecodeJSONField[T any](field string) PageDecoder[T] {
	return func(resp *Response) ([]T, error) {
		envelope, err := DecodeJSON[map[string]json.RawMessage](resp)
		if err != nil {
			return nil, err
		}

		raw, ok := envelope[field]
		if !ok {
			return nil, nil
		}

		var items []T

		err = json.Unmarshal(raw, &items)
		if err != nil {
			return nil, &ProtocolError{Op: fmt.Sprintf("decode JSON field %q", field), Err: err}
		}

		return items, nil
	}
}

// DecodeBytes returns the raw decoded body.
func DecodeBytes(resp *Response) ([]byte, error) {
	if !resp.HasBody() {
		return nil, nil
	}

	return resp.ReadAll()
}

// DiscardBody is a Decoder for calls whose body is irrelevant.
func DiscardBody(*Response) (struct{}, error) {
	return struct{}{}, nil
}
