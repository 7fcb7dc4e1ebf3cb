package bus

import "context"

// The origin travels through the context tree so that dynamically declared
// functions can resolve the invoking conversation inside Execute without
// mutable per-tool state.

type originKey struct{}

// WithOrigin returns a child context carrying o.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom extracts the Origin from ctx.
// Returns a zero-value Origin if none was set.
func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}
