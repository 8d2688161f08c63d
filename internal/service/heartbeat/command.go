package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	"github.com/oshokin/deadman-vault/internal/logger"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/common"
)

// Options controls the heartbeat agent.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// Vault overrides the configured vault address.
	Vault string
	// Interval overrides the configured refresh period.
	Interval time.Duration
	// Once sends a single heartbeat and exits.
	Once bool
}

// Client is the part of the vault client the agent needs.
type Client interface {
	RefreshActivity(ctx context.Context, vault string) (*rpc.ReceiptResponse, error)
	GetVault(ctx context.Context, vault string) (*rpc.Vault, error)
}

var (
	// errVaultRequired is returned when no vault address is configured.
	errVaultRequired = errors.New("heartbeat vault must be provided")
	// errTokenRequired is returned when the owner token is missing.
	errTokenRequired = errors.New("auth token must be provided")
)

// Run keeps the configured vault alive until the context is canceled or the vault is sealed.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "vault-heartbeat")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err = logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	vault := cfg.Heartbeat.Vault
	if opts.Vault != "" {
		vault = opts.Vault
	}

	if vault == "" {
		return errVaultRequired
	}

	if cfg.Auth.Token == "" {
		return errTokenRequired
	}

	interval := cfg.Heartbeat.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}

	// Only one agent per machine.
	if err = ensureSingleInstance(listProcesses); err != nil {
		return err
	}

	agent, err := common.DetectAgent()
	if err != nil {
		return fmt.Errorf("detect agent: %w", err)
	}

	client, err := common.Dial(ctx, serverAddress,
		common.WithCallTimeout(cfg.Timeout),
		common.WithToken(cfg.Auth.Token))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	ctx = logger.WithFields(ctx, map[string]any{
		"vault": vault,
		"agent": agent.String(),
	})

	logger.InfoKV(ctx, "Keeping vault alive", "server_address", serverAddress, "interval", interval.String())

	b := &beater{
		client:     client,
		vault:      vault,
		warnBefore: cfg.Heartbeat.WarnBefore,
	}

	if opts.Once {
		if sealed := b.beat(ctx); sealed {
			return domain.ErrSealed
		}

		if b.lastErr != nil {
			return b.lastErr
		}

		return nil
	}

	return b.loop(ctx, interval)
}

// beater sends heartbeats for one vault and tracks its last known state.
type beater struct {
	// client performs the RPCs.
	client Client
	// vault is the address being kept alive.
	vault string
	// warnBefore is the deadline warning window.
	warnBefore time.Duration

	// known is the last vault state seen from the server.
	known *rpc.Vault
	// lastErr is the error of the last failed heartbeat.
	lastErr error
}

// loop beats immediately and then on every tick.
// It returns nil on cancellation and once the vault is sealed.
func (b *beater) loop(ctx context.Context, interval time.Duration) error {
	if sealed := b.beat(ctx); sealed {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if sealed := b.beat(ctx); sealed {
				return nil
			}
		}
	}
}

// beat refreshes the activity timer once and reports whether the vault is sealed.
func (b *beater) beat(ctx context.Context) bool {
	receipt, err := b.client.RefreshActivity(ctx, b.vault)
	if err == nil {
		b.known = receipt.Vault
		b.lastErr = nil

		if b.known != nil {
			logger.InfoKV(ctx, "Activity refreshed", "tx_id", receipt.TxID, "unlock_at", formatTime(b.known.UnlockAt))
		}

		return false
	}

	b.lastErr = err

	if errors.Is(err, domain.ErrSealed) {
		logger.WarnKV(ctx, "Vault is sealed, nothing left to keep alive", "error", err)
		return true
	}

	logger.ErrorKV(ctx, "Refresh activity failed", "error", err)

	// Nothing known yet, ask for the state.
	if b.known == nil {
		if vault, getErr := b.client.GetVault(ctx, b.vault); getErr == nil {
			b.known = vault
		}
	}

	if b.known != nil && b.known.Sealed {
		logger.WarnKV(ctx, "Vault is sealed, nothing left to keep alive", "sealed_at", formatTime(b.known.SealedAt))
		return true
	}

	b.warnIfClose(ctx)

	return false
}

// warnIfClose logs a warning when the last known unlock deadline is within the warning window.
func (b *beater) warnIfClose(ctx context.Context) {
	if b.known == nil || b.known.UnlockAt.IsZero() {
		return
	}

	remaining := time.Until(b.known.UnlockAt)
	if remaining > b.warnBefore {
		return
	}

	if remaining <= 0 {
		logger.WarnKV(ctx, "Unlock deadline passed, beneficiaries may claim the vault",
			"unlock_at", formatTime(b.known.UnlockAt))

		return
	}

	logger.WarnKV(ctx, "Unlock deadline approaching",
		"unlock_at", formatTime(b.known.UnlockAt),
		"remaining", remaining.Round(time.Second).String())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
