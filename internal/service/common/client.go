//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/config"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
)

// Client wraps the VaultService gRPC client with convenience helpers.
// Rejections are returned as errors matching the domain sentinels.
type Client struct {
	// conn is the underlying gRPC connection to the ledger server.
	conn *grpc.ClientConn
	// api is the VaultService client stub.
	api rpc.VaultServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// token authenticates mutating calls.
	token string
	// dialOptions are appended to the defaults.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithToken attaches the caller token to every call.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithDialOptions appends gRPC dial options, mainly for tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errTokenRequired is returned when a mutating call is made without a caller token.
	errTokenRequired = errors.New("caller token must be provided")
)

// Dial establishes a gRPC connection to the ledger server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(auth.TokenCredentials{Token: client.token}),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, client.dialOptions...)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial vault server: %w", err)
	}

	client.conn = conn
	client.api = rpc.NewVaultServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// CreateVault deploys a vault owned by the token subject.
func (c *Client) CreateVault(
	ctx context.Context,
	beneficiaries []string,
	unlockYears int,
	epitaph string,
) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "create vault", c.api.CreateVault, &rpc.CreateVaultRequest{
		Beneficiaries: beneficiaries,
		UnlockYears:   unlockYears,
		Epitaph:       epitaph,
	})
}

// Deposit credits amount to the vault.
func (c *Client) Deposit(ctx context.Context, vault, amount string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "deposit", c.api.Deposit, &rpc.DepositRequest{Vault: vault, Amount: amount})
}

// Transfer pays amount from the vault to a recipient.
func (c *Client) Transfer(ctx context.Context, vault, to, amount string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "transfer", c.api.Transfer, &rpc.TransferRequest{Vault: vault, To: to, Amount: amount})
}

// Withdraw pays amount from the vault to its owner.
func (c *Client) Withdraw(ctx context.Context, vault, amount string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "withdraw", c.api.Withdraw, &rpc.WithdrawRequest{Vault: vault, Amount: amount})
}

// AddBeneficiary registers a beneficiary.
func (c *Client) AddBeneficiary(ctx context.Context, vault, beneficiary string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "add beneficiary", c.api.AddBeneficiary, &rpc.BeneficiaryRequest{
		Vault:       vault,
		Beneficiary: beneficiary,
	})
}

// RemoveBeneficiary unregisters a beneficiary.
func (c *Client) RemoveBeneficiary(ctx context.Context, vault, beneficiary string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "remove beneficiary", c.api.RemoveBeneficiary, &rpc.BeneficiaryRequest{
		Vault:       vault,
		Beneficiary: beneficiary,
	})
}

// RefreshActivity records an owner heartbeat.
func (c *Client) RefreshActivity(ctx context.Context, vault string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "refresh activity", c.api.RefreshActivity, &rpc.RefreshActivityRequest{Vault: vault})
}

// UpdateUnlockPeriod changes the inactivity period.
func (c *Client) UpdateUnlockPeriod(ctx context.Context, vault string, years int) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "update unlock period", c.api.UpdateUnlockPeriod, &rpc.UpdateUnlockPeriodRequest{
		Vault: vault,
		Years: years,
	})
}

// FinalPayout claims the whole balance. An empty target means the token subject.
func (c *Client) FinalPayout(ctx context.Context, vault, target string) (*rpc.ReceiptResponse, error) {
	return mutate(ctx, c, "final payout", c.api.FinalPayout, &rpc.FinalPayoutRequest{Vault: vault, Target: target})
}

// GetVault retrieves the current state of a vault.
func (c *Client) GetVault(ctx context.Context, vault string) (*rpc.Vault, error) {
	resp, err := call(ctx, c, "get vault", c.api.GetVault, &rpc.GetVaultRequest{Vault: vault})
	if err != nil {
		return nil, err
	}

	return resp.Vault, nil
}

// ListVaults retrieves every vault in deployment order.
func (c *Client) ListVaults(ctx context.Context) ([]*rpc.Vault, error) {
	resp, err := call(ctx, c, "list vaults", c.api.ListVaults, &rpc.ListVaultsRequest{})
	if err != nil {
		return nil, err
	}

	return resp.Vaults, nil
}

// ListRecords retrieves journal entries of a vault with Seq > afterSeq.
func (c *Client) ListRecords(ctx context.Context, vault string, afterSeq uint64, limit int) ([]*rpc.Record, error) {
	resp, err := call(ctx, c, "list records", c.api.ListRecords, &rpc.ListRecordsRequest{
		Vault:    vault,
		AfterSeq: afterSeq,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	return resp.Records, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// stub is the shape of every VaultService client method.
type stub[Req, Resp any] func(ctx context.Context, req *Req, opts ...grpc.CallOption) (*Resp, error)

// mutate performs a call that needs an authenticated caller.
func mutate[Req any](
	ctx context.Context,
	c *Client,
	operation string,
	method stub[Req, rpc.ReceiptResponse],
	req *Req,
) (*rpc.ReceiptResponse, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%s: %w", operation, errTokenRequired)
	}

	return call(ctx, c, operation, method, req)
}

// call performs a single RPC under the call timeout and maps rejections to domain errors.
func call[Req, Resp any](
	ctx context.Context,
	c *Client,
	operation string,
	method stub[Req, Resp],
	req *Req,
) (*Resp, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := method(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, rpc.FromStatus(err))
	}

	return resp, nil
}
