package vault

import (
	"context"
	"math/big"
	"testing"
	"testing/synctest"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/domain/factory"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/ledger"
)

var (
	owner       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	beneficiary = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	vaultAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a0")
)

// fakeService implements the vault Service interface for unit testing the transport.
type fakeService struct {
	Service

	// vault is the single vault managed by the fake.
	vault *domain.Vault
	// calls records the caller of every mutating operation.
	calls []domain.Address
	// err is returned by every mutating operation when set.
	err error
}

func newFakeService() *fakeService {
	return &fakeService{
		vault: &domain.Vault{
			Address:       vaultAddr,
			Owner:         owner,
			Beneficiaries: []domain.Address{beneficiary},
			UnlockPeriod:  domain.Year,
			LastActivity:  time.Now().UTC(),
			Epitaph:       "Yo!",
			Balance:       new(big.Int),
			CreatedAt:     time.Now().UTC(),
		},
	}
}

func (f *fakeService) receipt(caller domain.Address, events ...domain.Event) (*ledger.Receipt, error) {
	f.calls = append(f.calls, caller)

	if f.err != nil {
		return nil, f.err
	}

	records := make([]*domain.Record, 0, len(events))
	for i, event := range events {
		records = append(records, &domain.Record{
			Seq:         uint64(i) + 1, //nolint:gosec // Small test values.
			TxID:        "tx",
			Vault:       f.vault.Address,
			CommittedAt: time.Now().UTC(),
			Event:       event,
		})
	}

	return &ledger.Receipt{
		TxID:        "tx",
		CommittedAt: time.Now().UTC(),
		Vault:       f.vault.Clone(),
		Records:     records,
	}, nil
}

func (f *fakeService) CreateVault(_ context.Context, caller domain.Address, req *factory.Request) (*ledger.Receipt, error) {
	f.vault.Owner = caller
	f.vault.Epitaph = req.Epitaph

	return f.receipt(caller, domain.Event{Kind: domain.EventVaultCreated, From: caller, To: f.vault.Address})
}

func (f *fakeService) Deposit(_ context.Context, caller, _ domain.Address, amount *big.Int) (*ledger.Receipt, error) {
	if f.err == nil {
		f.vault.Balance.Add(f.vault.Balance, amount)
	}

	return f.receipt(caller, domain.Event{Kind: domain.EventDeposit, From: caller, Amount: amount})
}

func (f *fakeService) FinalPayout(_ context.Context, caller, _, target domain.Address) (*ledger.Receipt, error) {
	if target == (domain.Address{}) {
		target = caller
	}

	return f.receipt(caller,
		domain.Event{Kind: domain.EventPayment, To: target, Amount: new(big.Int)},
		domain.Event{Kind: domain.EventGoodbyeWorld, Message: f.vault.Epitaph})
}

func (f *fakeService) AddBeneficiary(_ context.Context, caller, _, identity domain.Address) (*ledger.Receipt, error) {
	f.vault.Beneficiaries = append(f.vault.Beneficiaries, identity)

	return f.receipt(caller)
}

func (f *fakeService) GetVault(_ context.Context, address domain.Address) (*ledger.View, error) {
	if address != f.vault.Address {
		return nil, domain.ErrVaultNotFound
	}

	now := time.Now().UTC()

	return &ledger.View{
		Vault:    f.vault.Clone(),
		UnlockAt: f.vault.UnlockAt(),
		Eligible: f.vault.Eligible(now),
		Now:      now,
	}, nil
}

func (f *fakeService) ListVaults(ctx context.Context) []*ledger.View {
	view, _ := f.GetVault(ctx, f.vault.Address)

	return []*ledger.View{view}
}

func (f *fakeService) Records(context.Context, domain.Address, uint64, int) ([]*domain.Record, error) {
	return []*domain.Record{{Seq: 9, TxID: "tx-9", Vault: f.vault.Address, Event: domain.Event{
		Kind:    domain.EventGoodbyeWorld,
		Message: "Yo!",
	}}}, nil
}

// TestServer_RequiresCaller ensures mutating calls without a token return Unauthenticated.
func TestServer_RequiresCaller(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService())
	ctx := context.Background()

	_, err := s.Deposit(ctx, &rpc.DepositRequest{Vault: vaultAddr.Hex(), Amount: "1"})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.CreateVault(ctx, &rpc.CreateVaultRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.FinalPayout(ctx, &rpc.FinalPayoutRequest{Vault: vaultAddr.Hex()})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService())
	ctx := auth.WithCaller(context.Background(), owner)

	_, err := s.Deposit(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Deposit(ctx, &rpc.DepositRequest{Vault: "olga", Amount: "1"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, rpc.ReasonInvalidAddress, rpc.Reason(err))

	_, err = s.Deposit(ctx, &rpc.DepositRequest{Vault: vaultAddr.Hex(), Amount: "1.5"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, rpc.ReasonInvalidAmount, rpc.Reason(err))

	_, err = s.Transfer(ctx, &rpc.TransferRequest{Vault: vaultAddr.Hex(), To: "", Amount: "1"})
	require.Equal(t, rpc.ReasonInvalidAddress, rpc.Reason(err))

	_, err = s.AddBeneficiary(ctx, &rpc.BeneficiaryRequest{Vault: vaultAddr.Hex()})
	require.Equal(t, rpc.ReasonInvalidAddress, rpc.Reason(err))

	_, err = s.FinalPayout(ctx, &rpc.FinalPayoutRequest{Vault: vaultAddr.Hex(), Target: "0x12"})
	require.Equal(t, rpc.ReasonInvalidAddress, rpc.Reason(err))
}

// TestServer_MapsDomainErrors converts ledger rejections into statuses with reasons.
func TestServer_MapsDomainErrors(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.err = domain.ErrSealed

	s := NewServer(svc)
	ctx := auth.WithCaller(context.Background(), owner)

	_, err := s.Deposit(ctx, &rpc.DepositRequest{Vault: vaultAddr.Hex(), Amount: "1"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
	require.Equal(t, rpc.ReasonSealed, rpc.Reason(err))
	require.ErrorIs(t, rpc.FromStatus(err), domain.ErrSealed)

	_, err = s.GetVault(ctx, &rpc.GetVaultRequest{Vault: common.HexToAddress("0xdead").Hex()})
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestServer_Roundtrip exercises mutating and read calls end-to-end on the server implementation.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		svc := newFakeService()
		s := NewServer(svc)
		ctx := auth.WithCaller(context.Background(), owner)

		receipt, err := s.CreateVault(ctx, &rpc.CreateVaultRequest{
			Beneficiaries: []string{beneficiary.Hex()},
			UnlockYears:   1,
			Epitaph:       "Goodbye!",
		})
		require.NoError(t, err)
		require.Equal(t, owner.Hex(), receipt.Vault.Owner)
		require.Equal(t, "VaultCreated", receipt.Records[0].Kind)
		require.Equal(t, vaultAddr.Hex(), receipt.Records[0].To)

		receipt, err = s.Deposit(ctx, &rpc.DepositRequest{Vault: vaultAddr.Hex(), Amount: " 300 "})
		require.NoError(t, err)
		require.Equal(t, "300", receipt.Vault.Balance)
		require.Equal(t, "300", receipt.Records[0].Amount)
		require.Equal(t, owner.Hex(), receipt.Records[0].From)

		_, err = s.AddBeneficiary(ctx, &rpc.BeneficiaryRequest{Vault: vaultAddr.Hex(), Beneficiary: owner.Hex()})
		require.NoError(t, err)

		// Advance the bubble clock past the unlock period.
		time.Sleep(domain.Year + time.Second)

		response, err := s.GetVault(context.Background(), &rpc.GetVaultRequest{Vault: vaultAddr.Hex()})
		require.NoError(t, err)
		require.True(t, response.Vault.Eligible)
		require.Equal(t, int64(365*24*60*60), response.Vault.UnlockPeriodSeconds)
		require.Equal(t, []string{beneficiary.Hex(), owner.Hex()}, response.Vault.Beneficiaries)

		payout, err := s.FinalPayout(auth.WithCaller(context.Background(), beneficiary), &rpc.FinalPayoutRequest{
			Vault: vaultAddr.Hex(),
		})
		require.NoError(t, err)
		require.Len(t, payout.Records, 2)
		require.Equal(t, beneficiary.Hex(), payout.Records[0].To)
		require.Equal(t, "Goodbye!", payout.Records[1].Message)

		list, err := s.ListVaults(context.Background(), &rpc.ListVaultsRequest{})
		require.NoError(t, err)
		require.Len(t, list.Vaults, 1)

		records, err := s.ListRecords(context.Background(), &rpc.ListRecordsRequest{Vault: vaultAddr.Hex()})
		require.NoError(t, err)
		require.Equal(t, uint64(9), records.Records[0].Seq)

		require.Equal(t, []domain.Address{owner, owner, owner, beneficiary}, svc.calls)
	})
}
