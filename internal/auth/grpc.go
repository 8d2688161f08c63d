package auth

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/deadman-vault/internal/logger"
)

const (
	// authorizationHeader is the metadata key carrying the caller token.
	authorizationHeader = "authorization"
	// bearerPrefix precedes the token in the authorization header.
	bearerPrefix = "bearer "
)

// Verifier resolves a token to the caller address.
type Verifier interface {
	Verify(token string) (common.Address, error)
}

// UnaryServerInterceptor authenticates callers that present a bearer token.
// Requests without a token pass through anonymously; handlers decide
// whether an operation needs a caller. A present but invalid token is rejected.
func UnaryServerInterceptor(verifier Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token, ok := bearerToken(ctx)
		if !ok {
			return handler(ctx, req)
		}

		caller, err := verifier.Verify(token)
		if err != nil {
			logger.WarnKV(ctx, "Rejected caller token", "method", info.FullMethod, "error", err)

			return nil, status.Error(codes.Unauthenticated, "invalid caller token")
		}

		return handler(WithCaller(ctx, caller), req)
	}
}

// bearerToken extracts the token from incoming metadata.
func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return "", false
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return value, value != ""
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])

	return token, token != ""
}

// TokenCredentials attaches a bearer token to every outgoing RPC.
type TokenCredentials struct {
	// Token is the signed caller token.
	Token string
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (c TokenCredentials) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	if c.Token == "" {
		return nil, nil
	}

	return map[string]string{
		authorizationHeader: "Bearer " + c.Token,
	}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
// The ledger is reached over plaintext connections like the rest of the tooling.
func (TokenCredentials) RequireTransportSecurity() bool {
	return false
}
