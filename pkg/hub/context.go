package hub

import "context"

type callIDKey struct{}

// ContextWithCallID returns a copy of ctx carrying the id of one logical call.
// Interceptors use it to correlate the request and response side of a call.
func ContextWithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFromContext returns the call id stored by ContextWithCallID.
func CallIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)

	return id, ok && id != ""
}
