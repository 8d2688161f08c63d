package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/common"
	"github.com/oshokin/deadman-vault/internal/service/heartbeat"
	"github.com/oshokin/deadman-vault/internal/service/server"
)

const secret = "integration-secret"

var (
	owner        = ethcommon.HexToAddress("0x0000000000000000000000000000000000000001")
	beneficiary1 = ethcommon.HexToAddress("0x00000000000000000000000000000000000000b1")
	beneficiary2 = ethcommon.HexToAddress("0x00000000000000000000000000000000000000b2")
	stranger     = ethcommon.HexToAddress("0x00000000000000000000000000000000000000ff")
)

// reservePort returns a free local address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// writeConfig saves settings for a server on addr and returns the file path.
func writeConfig(t *testing.T, settings *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, settings))

	return path
}

// startServer runs vault-server in the background and returns a stop function
// that waits until Run has returned.
func startServer(t *testing.T, settings *config.Config) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := writeConfig(t, settings)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:    cfgPath,
			ListenAddress: settings.ServerAddress,
		})
	}()

	waitForListener(t, settings.ServerAddress)

	if settings.HTTPAddress != "" {
		waitForListener(t, settings.HTTPAddress)
	}

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 5*time.Second, 20*time.Millisecond)
}

func newSettings(t *testing.T, storage config.Storage) *config.Config {
	t.Helper()

	return &config.Config{
		ServerAddress: reservePort(t),
		HTTPAddress:   reservePort(t),
		Timeout:       3 * time.Second,
		Storage:       storage,
		Auth:          config.Auth{Secret: secret},
	}
}

// dialAs connects with a token for identity; the zero address dials anonymously.
func dialAs(t *testing.T, addr string, identity ethcommon.Address) *common.Client {
	t.Helper()

	var token string

	if identity != (ethcommon.Address{}) {
		authority, err := auth.NewAuthority(secret, config.DefaultIssuer, time.Hour)
		require.NoError(t, err)

		token, err = authority.Issue(identity)
		require.NoError(t, err)
	}

	c, err := common.Dial(context.Background(), addr, common.WithCallTimeout(3*time.Second), common.WithToken(token))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// TestGRPC_VaultLifecycle drives the owner and beneficiary flows against a live server.
func TestGRPC_VaultLifecycle(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "ledger.json")
	settings := newSettings(t, config.Storage{Driver: config.DriverFile, StateFile: statePath})

	stop := startServer(t, settings)
	defer stop()

	ctx := context.Background()
	ownerClient := dialAs(t, settings.ServerAddress, owner)
	heirClient := dialAs(t, settings.ServerAddress, beneficiary1)
	strangerClient := dialAs(t, settings.ServerAddress, stranger)
	anonymous := dialAs(t, settings.ServerAddress, ethcommon.Address{})

	// Construction is validated.
	_, err := ownerClient.CreateVault(ctx, nil, 1, "Yo!")
	require.ErrorIs(t, err, domain.ErrInvalidConstruction)

	created, err := ownerClient.CreateVault(ctx, []string{beneficiary1.Hex()}, 1, "Yo!")
	require.NoError(t, err)
	require.Equal(t, owner.Hex(), created.Vault.Owner)
	require.Equal(t, string(domain.EventVaultCreated), created.Records[0].Kind)

	vault := created.Vault.Address

	// Anyone may deposit.
	_, err = strangerClient.Deposit(ctx, vault, "500")
	require.NoError(t, err)

	// Owner-only operations reject strangers.
	_, err = strangerClient.Withdraw(ctx, vault, "1")
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = ownerClient.Withdraw(ctx, vault, "501")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	paid, err := ownerClient.Transfer(ctx, vault, stranger.Hex(), "200")
	require.NoError(t, err)
	require.Equal(t, "300", paid.Vault.Balance)
	require.Equal(t, string(domain.EventPayment), paid.Records[0].Kind)

	_, err = ownerClient.AddBeneficiary(ctx, vault, beneficiary2.Hex())
	require.NoError(t, err)

	_, err = ownerClient.RemoveBeneficiary(ctx, vault, beneficiary2.Hex())
	require.NoError(t, err)

	_, err = ownerClient.UpdateUnlockPeriod(ctx, vault, 0)
	require.ErrorIs(t, err, domain.ErrInvalidUnlockPeriod)

	updated, err := ownerClient.UpdateUnlockPeriod(ctx, vault, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2*365*24*60*60), updated.Vault.UnlockPeriodSeconds)

	// The beneficiary cannot claim before the unlock period elapses.
	_, err = heirClient.FinalPayout(ctx, vault, "")
	require.ErrorIs(t, err, domain.ErrNotYetEligible)

	_, err = strangerClient.FinalPayout(ctx, vault, "")
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	// Mutations require a token, reads do not.
	_, err = anonymous.Deposit(ctx, vault, "1")
	require.Error(t, err)

	state, err := anonymous.GetVault(ctx, vault)
	require.NoError(t, err)
	require.Equal(t, "300", state.Balance)
	require.Equal(t, []string{beneficiary1.Hex()}, state.Beneficiaries)
	require.False(t, state.Sealed)
	require.False(t, state.Eligible)

	records, err := anonymous.ListRecords(ctx, vault, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, record := range records {
		require.Equal(t, uint64(i+1), record.Seq) //nolint:gosec // Small test values.
	}

	// The observer serves the same state.
	resp, err := http.Get("http://" + settings.HTTPAddress + "/vaults/" + vault) //nolint:noctx // Test request.
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var observed rpc.Vault

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&observed))
	require.Equal(t, "300", observed.Balance)
	require.Equal(t, owner.Hex(), observed.Owner)

	// State reached the disk.
	_, err = os.Stat(statePath)
	require.NoError(t, err)
}

// TestGRPC_RestoresAfterRestart restarts the server on the same storage.
func TestGRPC_RestoresAfterRestart(t *testing.T) {
	t.Parallel()

	backends := map[string]config.Storage{
		"file":   {Driver: config.DriverFile, StateFile: filepath.Join(t.TempDir(), "ledger.json")},
		"sqlite": {Driver: config.DriverSQLite, DSN: "file:" + filepath.Join(t.TempDir(), "ledger.db")},
	}

	for name, storage := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			settings := newSettings(t, storage)
			ctx := context.Background()

			stop := startServer(t, settings)

			created, err := dialAs(t, settings.ServerAddress, owner).
				CreateVault(ctx, []string{beneficiary1.Hex()}, 1, "Yo!")
			require.NoError(t, err)

			_, err = dialAs(t, settings.ServerAddress, owner).Deposit(ctx, created.Vault.Address, "42")
			require.NoError(t, err)

			stop()

			settings.ServerAddress = reservePort(t)
			settings.HTTPAddress = reservePort(t)

			stop = startServer(t, settings)
			defer stop()

			client := dialAs(t, settings.ServerAddress, owner)

			state, err := client.GetVault(ctx, created.Vault.Address)
			require.NoError(t, err)
			require.Equal(t, "42", state.Balance)

			// The factory nonce continues, so the next vault gets a fresh address.
			next, err := client.CreateVault(ctx, []string{beneficiary1.Hex()}, 1, "Yo!")
			require.NoError(t, err)
			require.NotEqual(t, created.Vault.Address, next.Vault.Address)

			records, err := client.ListRecords(ctx, next.Vault.Address, 0, 0)
			require.NoError(t, err)
			require.Equal(t, uint64(3), records[0].Seq)
		})
	}
}

// TestHeartbeat_Once refreshes the activity timer through the agent.
func TestHeartbeat_Once(t *testing.T) {
	t.Parallel()

	settings := newSettings(t, config.Storage{
		Driver:    config.DriverFile,
		StateFile: filepath.Join(t.TempDir(), "ledger.json"),
	})

	stop := startServer(t, settings)
	defer stop()

	ctx := context.Background()
	ownerClient := dialAs(t, settings.ServerAddress, owner)

	created, err := ownerClient.CreateVault(ctx, []string{beneficiary1.Hex()}, 1, "Yo!")
	require.NoError(t, err)

	authority, err := auth.NewAuthority(secret, config.DefaultIssuer, time.Hour)
	require.NoError(t, err)

	token, err := authority.Issue(owner)
	require.NoError(t, err)

	agentPath := writeConfig(t, &config.Config{
		ServerAddress: settings.ServerAddress,
		Timeout:       3 * time.Second,
		Auth:          config.Auth{Token: token},
		Heartbeat:     config.Heartbeat{Vault: created.Vault.Address},
	})

	require.NoError(t, heartbeat.Run(ctx, &heartbeat.Options{ConfigPath: agentPath, Once: true}))

	records, err := ownerClient.ListRecords(ctx, created.Vault.Address, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, string(domain.EventLastActivityUpdated), records[1].Kind)
}
