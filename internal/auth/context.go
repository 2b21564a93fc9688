package auth

import "context"

type ctxKey int

const resultKey ctxKey = iota

// WithResult stores an authenticated Result in ctx.
func WithResult(ctx context.Context, res Result) context.Context {
	return context.WithValue(ctx, resultKey, res)
}

// FromContext returns the Result stored by Require, if any.
func FromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey).(Result)
	return res, ok
}
