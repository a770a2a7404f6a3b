package hub

import "context"

// Connector is the only seam between the library and a transport. Send
// performs one exchange and returns the response whatever its status; it
// returns a *TransportError for I/O failures and never retries on status.
type Connector interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f.
func (f ConnectorFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
