package client

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
)

const (
	vaultAddress = "0x00000000000000000000000000000000000000A0"
	owner        = "0x0000000000000000000000000000000000000001"
	beneficiary  = "0x00000000000000000000000000000000000000b1"
)

// fakeClient answers every call with canned data and records the last call.
type fakeClient struct {
	VaultClient

	last string
	err  error
}

func (f *fakeClient) receipt(call string, records ...*rpc.Record) (*rpc.ReceiptResponse, error) {
	f.last = call

	if f.err != nil {
		return nil, f.err
	}

	return &rpc.ReceiptResponse{
		TxID:    "tx-42",
		Vault:   &rpc.Vault{Address: vaultAddress, Owner: owner, Balance: "300", UnlockPeriodSeconds: 3600},
		Records: records,
	}, nil
}

func (f *fakeClient) Deposit(_ context.Context, _, amount string) (*rpc.ReceiptResponse, error) {
	return f.receipt("deposit", &rpc.Record{Seq: 2, Kind: string(domain.EventDeposit), From: owner, Amount: amount})
}

func (f *fakeClient) FinalPayout(_ context.Context, _, target string) (*rpc.ReceiptResponse, error) {
	return f.receipt("payout",
		&rpc.Record{Seq: 7, Kind: string(domain.EventPayment), To: target, Amount: "300"},
		&rpc.Record{Seq: 8, Kind: string(domain.EventGoodbyeWorld), Message: "Yo!"})
}

func (f *fakeClient) UpdateUnlockPeriod(context.Context, string, int) (*rpc.ReceiptResponse, error) {
	return f.receipt("unlock-period")
}

func (f *fakeClient) GetVault(_ context.Context, vault string) (*rpc.Vault, error) {
	f.last = "get"

	return &rpc.Vault{
		Address:       vault,
		Owner:         owner,
		Beneficiaries: []string{beneficiary},
		Balance:       "0",
		Sealed:        true,
		SealedAt:      time.Date(2027, time.January, 2, 0, 0, 0, 0, time.UTC),
		Epitaph:       "Yo!",
	}, nil
}

func (f *fakeClient) ListVaults(context.Context) ([]*rpc.Vault, error) {
	f.last = "list"

	return []*rpc.Vault{{Address: vaultAddress, Owner: owner, Balance: "300"}}, nil
}

func (f *fakeClient) ListRecords(context.Context, string, uint64, int) ([]*rpc.Record, error) {
	f.last = "records"

	return []*rpc.Record{
		{Seq: 1, TxID: "tx-1", Kind: string(domain.EventVaultCreated), To: vaultAddress},
		{Seq: 2, TxID: "tx-2", Kind: string(domain.EventUnlockPeriodUpdated), UnlockPeriodSeconds: 7200},
	}, nil
}

// TestRunner_PrintsReceipts renders committed operations.
func TestRunner_PrintsReceipts(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	client := new(fakeClient)
	runner := NewRunner(client, &out)
	ctx := context.Background()

	require.NoError(t, runner.Deposit(ctx, vaultAddress, "300"))
	require.Equal(t, "deposit", client.last)
	require.Contains(t, out.String(), "tx-42")
	require.Contains(t, out.String(), "#2 Deposit from "+owner+", amount 300")
	require.Contains(t, out.String(), "1h0m0s")

	out.Reset()

	require.NoError(t, runner.Payout(ctx, vaultAddress, beneficiary))
	require.Contains(t, out.String(), "#7 Payment to "+beneficiary)
	require.Contains(t, out.String(), "Yo!")
	require.NotContains(t, out.String(), "#8")

	require.NoError(t, runner.UnlockPeriod(ctx, vaultAddress, 2))
	require.Equal(t, "unlock-period", client.last)
	require.NoError(t, runner.Close())
}

// TestRunner_PropagatesErrors returns rejections unchanged.
func TestRunner_PropagatesErrors(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	runner := NewRunner(&fakeClient{err: domain.ErrSealed}, &out)

	require.ErrorIs(t, runner.Deposit(context.Background(), vaultAddress, "1"), domain.ErrSealed)
	require.Empty(t, out.String())
}

// TestRunner_Show renders one vault or the whole list.
func TestRunner_Show(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	client := new(fakeClient)
	runner := NewRunner(client, &out)

	require.NoError(t, runner.Show(context.Background(), vaultAddress))
	require.Equal(t, "get", client.last)
	require.Contains(t, out.String(), "sealed")
	require.Contains(t, out.String(), "2027-01-02T00:00:00Z")
	require.Contains(t, out.String(), beneficiary)

	out.Reset()

	require.NoError(t, runner.Show(context.Background(), ""))
	require.Equal(t, "list", client.last)
	require.Contains(t, out.String(), "ADDRESS")
	require.Contains(t, out.String(), "active")

	out.Reset()

	require.NoError(t, runner.Records(context.Background(), vaultAddress, 0, 10))
	require.Contains(t, out.String(), "VaultCreated")
	require.Contains(t, out.String(), "period 2h0m0s")
}

// TestIssueToken signs a token the server authority accepts.
func TestIssueToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, &config.Config{
		ServerAddress: "127.0.0.1:50051",
		Auth:          config.Auth{Secret: "secret"},
	}))

	token, err := IssueToken(&Options{ConfigPath: path}, owner)
	require.NoError(t, err)

	authority, err := auth.NewAuthority("secret", config.DefaultIssuer, time.Hour)
	require.NoError(t, err)

	subject, err := authority.Verify(token)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(owner), subject)

	_, err = IssueToken(&Options{ConfigPath: path}, "olga")
	require.ErrorIs(t, err, errSubjectRequired)
}
