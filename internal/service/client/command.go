package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/config"
	"github.com/oshokin/deadman-vault/internal/logger"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	shared "github.com/oshokin/deadman-vault/internal/service/common"
)

// Options configures how vault-cli reaches the ledger server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Token overrides the caller token from config when specified.
	Token string
	// Output receives command results, stdout when nil.
	Output io.Writer
}

// VaultClient is the remote ledger API used by the commands.
type VaultClient interface {
	CreateVault(ctx context.Context, beneficiaries []string, unlockYears int, epitaph string) (*rpc.ReceiptResponse, error)
	Deposit(ctx context.Context, vault, amount string) (*rpc.ReceiptResponse, error)
	Transfer(ctx context.Context, vault, to, amount string) (*rpc.ReceiptResponse, error)
	Withdraw(ctx context.Context, vault, amount string) (*rpc.ReceiptResponse, error)
	AddBeneficiary(ctx context.Context, vault, beneficiary string) (*rpc.ReceiptResponse, error)
	RemoveBeneficiary(ctx context.Context, vault, beneficiary string) (*rpc.ReceiptResponse, error)
	RefreshActivity(ctx context.Context, vault string) (*rpc.ReceiptResponse, error)
	UpdateUnlockPeriod(ctx context.Context, vault string, years int) (*rpc.ReceiptResponse, error)
	FinalPayout(ctx context.Context, vault, target string) (*rpc.ReceiptResponse, error)
	GetVault(ctx context.Context, vault string) (*rpc.Vault, error)
	ListVaults(ctx context.Context) ([]*rpc.Vault, error)
	ListRecords(ctx context.Context, vault string, afterSeq uint64, limit int) ([]*rpc.Record, error)
}

// errSubjectRequired is returned when a token is requested for a malformed address.
var errSubjectRequired = errors.New("token subject must be a hex address")

// Runner executes vault-cli commands against one client.
type Runner struct {
	// client performs the RPCs.
	client VaultClient
	// out receives rendered results.
	out io.Writer
	// closer releases the connection, nil for injected clients.
	closer io.Closer
}

// NewRunner wraps an existing client.
func NewRunner(client VaultClient, out io.Writer) *Runner {
	return &Runner{client: client, out: out}
}

// Open loads settings and dials the ledger server.
func Open(ctx context.Context, opts *Options) (*Runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	token := cfg.Auth.Token
	if opts.Token != "" {
		token = opts.Token
	}

	client, err := shared.Dial(ctx, serverAddress,
		shared.WithCallTimeout(cfg.Timeout),
		shared.WithToken(token))
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected to vault server", "server_address", serverAddress)

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Runner{client: client, out: out, closer: client}, nil
}

// Close releases the connection.
func (r *Runner) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

// IssueToken signs a caller token for subject with the server secret from the settings file.
func IssueToken(opts *Options, subject string) (string, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	subject = strings.TrimSpace(subject)
	if !common.IsHexAddress(subject) {
		return "", fmt.Errorf("%w: %q", errSubjectRequired, subject)
	}

	authority, err := auth.NewAuthority(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return "", err
	}

	return authority.Issue(common.HexToAddress(subject))
}

// Create deploys a vault owned by the token subject.
func (r *Runner) Create(ctx context.Context, beneficiaries []string, unlockYears int, epitaph string) error {
	return r.receipt(r.client.CreateVault(ctx, beneficiaries, unlockYears, epitaph))
}

// Deposit credits amount to the vault.
func (r *Runner) Deposit(ctx context.Context, vault, amount string) error {
	return r.receipt(r.client.Deposit(ctx, vault, amount))
}

// Transfer pays amount to a recipient.
func (r *Runner) Transfer(ctx context.Context, vault, to, amount string) error {
	return r.receipt(r.client.Transfer(ctx, vault, to, amount))
}

// Withdraw pays amount to the owner.
func (r *Runner) Withdraw(ctx context.Context, vault, amount string) error {
	return r.receipt(r.client.Withdraw(ctx, vault, amount))
}

// AddBeneficiary registers a beneficiary.
func (r *Runner) AddBeneficiary(ctx context.Context, vault, beneficiary string) error {
	return r.receipt(r.client.AddBeneficiary(ctx, vault, beneficiary))
}

// RemoveBeneficiary unregisters a beneficiary.
func (r *Runner) RemoveBeneficiary(ctx context.Context, vault, beneficiary string) error {
	return r.receipt(r.client.RemoveBeneficiary(ctx, vault, beneficiary))
}

// Heartbeat refreshes the activity timer once.
func (r *Runner) Heartbeat(ctx context.Context, vault string) error {
	return r.receipt(r.client.RefreshActivity(ctx, vault))
}

// UnlockPeriod changes the inactivity period.
func (r *Runner) UnlockPeriod(ctx context.Context, vault string, years int) error {
	return r.receipt(r.client.UpdateUnlockPeriod(ctx, vault, years))
}

// Payout claims the vault balance for the token subject.
func (r *Runner) Payout(ctx context.Context, vault, target string) error {
	return r.receipt(r.client.FinalPayout(ctx, vault, target))
}

// Show prints one vault, or every vault when address is empty.
func (r *Runner) Show(ctx context.Context, vault string) error {
	if vault == "" {
		vaults, err := r.client.ListVaults(ctx)
		if err != nil {
			return err
		}

		return r.print(renderVaultList(vaults))
	}

	v, err := r.client.GetVault(ctx, vault)
	if err != nil {
		return err
	}

	return r.print(renderVault(v))
}

// Records prints journal entries of a vault.
func (r *Runner) Records(ctx context.Context, vault string, afterSeq uint64, limit int) error {
	records, err := r.client.ListRecords(ctx, vault, afterSeq, limit)
	if err != nil {
		return err
	}

	return r.print(renderRecords(records))
}

func (r *Runner) receipt(receipt *rpc.ReceiptResponse, err error) error {
	if err != nil {
		return err
	}

	return r.print(renderReceipt(receipt))
}

func (r *Runner) print(text string) error {
	if r.out == nil {
		return nil
	}

	if _, err := io.WriteString(r.out, text); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
