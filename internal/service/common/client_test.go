//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"net"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oshokin/deadman-vault/internal/auth"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
)

var owner = ethcommon.HexToAddress("0x0000000000000000000000000000000000000001")

// callerServer echoes the authenticated caller and rejects withdrawals.
type callerServer struct {
	rpc.UnimplementedVaultServiceServer
}

func (callerServer) Deposit(ctx context.Context, req *rpc.DepositRequest) (*rpc.ReceiptResponse, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return nil, rpc.ToStatus(domain.ErrNotAuthorized)
	}

	return &rpc.ReceiptResponse{
		TxID:    "tx-1",
		Vault:   &rpc.Vault{Address: req.Vault, Balance: req.Amount},
		Records: []*rpc.Record{{Seq: 1, Kind: string(domain.EventDeposit), From: caller.Hex(), Amount: req.Amount}},
	}, nil
}

func (callerServer) Withdraw(context.Context, *rpc.WithdrawRequest) (*rpc.ReceiptResponse, error) {
	return nil, rpc.ToStatus(domain.ErrInsufficientBalance)
}

func (callerServer) GetVault(_ context.Context, req *rpc.GetVaultRequest) (*rpc.VaultResponse, error) {
	return &rpc.VaultResponse{Vault: &rpc.Vault{Address: req.Vault, Balance: "0"}}, nil
}

// dialBufconn starts callerServer behind the auth interceptor and dials it with the given token.
func dialBufconn(t *testing.T, authority *auth.Authority, token string) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(auth.UnaryServerInterceptor(authority)))
	rpc.RegisterVaultServiceServer(server, callerServer{})

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	client, err := Dial(context.Background(), "passthrough:///bufnet",
		WithToken(token),
		WithCallTimeout(3*time.Second),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		})))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// TestDial_ValidatesAddress verifies that Dial rejects empty addresses.
func TestDial_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_MutationsRequireToken rejects mutating calls locally when no token is configured.
func TestClient_MutationsRequireToken(t *testing.T) {
	t.Parallel()

	c, err := Dial(context.Background(), "127.0.0.1:1")
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	_, err = c.Deposit(context.Background(), owner.Hex(), "1")
	require.ErrorIs(t, err, errTokenRequired)

	_, err = c.FinalPayout(context.Background(), owner.Hex(), "")
	require.ErrorIs(t, err, errTokenRequired)
}

// TestClient_SendsTokenAndMapsErrors runs calls over bufconn through the auth interceptor.
func TestClient_SendsTokenAndMapsErrors(t *testing.T) {
	t.Parallel()

	authority, err := auth.NewAuthority("secret", "deadman-vault", time.Hour)
	require.NoError(t, err)

	token, err := authority.Issue(owner)
	require.NoError(t, err)

	client := dialBufconn(t, authority, token)
	ctx := context.Background()

	receipt, err := client.Deposit(ctx, "0xabc", "300")
	require.NoError(t, err)
	require.Equal(t, "tx-1", receipt.TxID)
	require.Equal(t, owner.Hex(), receipt.Records[0].From)

	_, err = client.Withdraw(ctx, "0xabc", "1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.Contains(t, err.Error(), "withdraw")

	vault, err := client.GetVault(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0", vault.Balance)
}

// TestClient_ForgedToken is rejected by the server before reaching the handler.
func TestClient_ForgedToken(t *testing.T) {
	t.Parallel()

	authority, err := auth.NewAuthority("secret", "deadman-vault", time.Hour)
	require.NoError(t, err)

	forger, err := auth.NewAuthority("other-secret", "deadman-vault", time.Hour)
	require.NoError(t, err)

	token, err := forger.Issue(owner)
	require.NoError(t, err)

	_, err = dialBufconn(t, authority, token).Deposit(context.Background(), "0xabc", "1")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNotAuthorized)
}
