package auth

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// callerKey is the private key type for the authenticated caller.
type callerKey struct{}

// WithCaller returns a copy of ctx carrying the authenticated caller.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)

	return caller, ok
}
