package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/deadman-vault/internal/auth"
	"github.com/oshokin/deadman-vault/internal/domain/factory"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/ledger"
)

// Service abstracts the ledger operations the transport layer depends on.
type Service interface {
	CreateVault(ctx context.Context, caller domain.Address, req *factory.Request) (*ledger.Receipt, error)
	Deposit(ctx context.Context, caller, vault domain.Address, amount *big.Int) (*ledger.Receipt, error)
	Transfer(ctx context.Context, caller, vault, to domain.Address, amount *big.Int) (*ledger.Receipt, error)
	Withdraw(ctx context.Context, caller, vault domain.Address, amount *big.Int) (*ledger.Receipt, error)
	AddBeneficiary(ctx context.Context, caller, vault, identity domain.Address) (*ledger.Receipt, error)
	RemoveBeneficiary(ctx context.Context, caller, vault, identity domain.Address) (*ledger.Receipt, error)
	RefreshActivity(ctx context.Context, caller, vault domain.Address) (*ledger.Receipt, error)
	UpdateUnlockPeriod(ctx context.Context, caller, vault domain.Address, years int) (*ledger.Receipt, error)
	FinalPayout(ctx context.Context, caller, vault, target domain.Address) (*ledger.Receipt, error)
	GetVault(ctx context.Context, address domain.Address) (*ledger.View, error)
	ListVaults(ctx context.Context) []*ledger.View
	Records(ctx context.Context, address domain.Address, afterSeq uint64, limit int) ([]*domain.Record, error)
}

// Server implements the VaultService gRPC API.
type Server struct {
	rpc.UnimplementedVaultServiceServer

	// service provides the ledger operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// CreateVault deploys a vault owned by the authenticated caller.
func (s *Server) CreateVault(ctx context.Context, req *rpc.CreateVaultRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := s.service.CreateVault(ctx, caller, &factory.Request{
		Beneficiaries: req.Beneficiaries,
		UnlockYears:   req.UnlockYears,
		Epitaph:       req.Epitaph,
	})

	return toReceipt(receipt, err)
}

// Deposit credits value sent by the authenticated caller.
func (s *Server) Deposit(ctx context.Context, req *rpc.DepositRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.Deposit(ctx, caller, vault, amount))
}

// Transfer pays value from the vault to a recipient.
func (s *Server) Transfer(ctx context.Context, req *rpc.TransferRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	to, err := parseAddress("recipient", req.To)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.Transfer(ctx, caller, vault, to, amount))
}

// Withdraw pays value from the vault to its owner.
func (s *Server) Withdraw(ctx context.Context, req *rpc.WithdrawRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.Withdraw(ctx, caller, vault, amount))
}

// AddBeneficiary registers a beneficiary.
func (s *Server) AddBeneficiary(ctx context.Context, req *rpc.BeneficiaryRequest) (*rpc.ReceiptResponse, error) {
	caller, vault, identity, err := beneficiaryArgs(ctx, req)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.AddBeneficiary(ctx, caller, vault, identity))
}

// RemoveBeneficiary unregisters a beneficiary.
func (s *Server) RemoveBeneficiary(ctx context.Context, req *rpc.BeneficiaryRequest) (*rpc.ReceiptResponse, error) {
	caller, vault, identity, err := beneficiaryArgs(ctx, req)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.RemoveBeneficiary(ctx, caller, vault, identity))
}

// RefreshActivity records an owner heartbeat.
func (s *Server) RefreshActivity(ctx context.Context, req *rpc.RefreshActivityRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.RefreshActivity(ctx, caller, vault))
}

// UpdateUnlockPeriod changes the inactivity period.
func (s *Server) UpdateUnlockPeriod(
	ctx context.Context,
	req *rpc.UpdateUnlockPeriodRequest,
) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	return toReceipt(s.service.UpdateUnlockPeriod(ctx, caller, vault, req.Years))
}

// FinalPayout pays the whole balance to the calling beneficiary and seals the vault.
func (s *Server) FinalPayout(ctx context.Context, req *rpc.FinalPayoutRequest) (*rpc.ReceiptResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	var target domain.Address
	if strings.TrimSpace(req.Target) != "" {
		if target, err = parseAddress("target", req.Target); err != nil {
			return nil, err
		}
	}

	return toReceipt(s.service.FinalPayout(ctx, caller, vault, target))
}

// GetVault returns the current state of a vault. No caller is required.
func (s *Server) GetVault(ctx context.Context, req *rpc.GetVaultRequest) (*rpc.VaultResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	view, err := s.service.GetVault(ctx, vault)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return &rpc.VaultResponse{Vault: toVault(view)}, nil
}

// ListVaults returns every vault in deployment order. No caller is required.
func (s *Server) ListVaults(ctx context.Context, _ *rpc.ListVaultsRequest) (*rpc.ListVaultsResponse, error) {
	views := s.service.ListVaults(ctx)

	response := &rpc.ListVaultsResponse{
		Vaults: make([]*rpc.Vault, 0, len(views)),
	}

	for _, view := range views {
		response.Vaults = append(response.Vaults, toVault(view))
	}

	return response, nil
}

// ListRecords returns journal entries of a vault. No caller is required.
func (s *Server) ListRecords(ctx context.Context, req *rpc.ListRecordsRequest) (*rpc.ListRecordsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return nil, err
	}

	records, err := s.service.Records(ctx, vault, req.AfterSeq, req.Limit)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return &rpc.ListRecordsResponse{Records: rpc.NewRecords(records)}, nil
}

// requireCaller returns the authenticated caller or an Unauthenticated status.
func requireCaller(ctx context.Context) (domain.Address, error) {
	caller, ok := auth.CallerFromContext(ctx)
	if !ok {
		return domain.Address{}, status.Error(codes.Unauthenticated, "caller token is required")
	}

	return caller, nil
}

// beneficiaryArgs validates the arguments shared by add and remove.
func beneficiaryArgs(
	ctx context.Context,
	req *rpc.BeneficiaryRequest,
) (domain.Address, domain.Address, domain.Address, error) {
	var zero domain.Address

	if req == nil {
		return zero, zero, zero, status.Error(codes.InvalidArgument, "request is required")
	}

	caller, err := requireCaller(ctx)
	if err != nil {
		return zero, zero, zero, err
	}

	vault, err := parseAddress("vault", req.Vault)
	if err != nil {
		return zero, zero, zero, err
	}

	identity, err := parseAddress("beneficiary", req.Beneficiary)
	if err != nil {
		return zero, zero, zero, err
	}

	return caller, vault, identity, nil
}

// parseAddress converts a hex string into an address.
func parseAddress(field, value string) (domain.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return domain.Address{}, rpc.ToStatus(fmt.Errorf("%w: %s %q", domain.ErrInvalidAddress, field, value))
	}

	return common.HexToAddress(value), nil
}

// parseAmount converts a decimal string into an amount.
func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, rpc.ToStatus(fmt.Errorf("%w: %q", domain.ErrInvalidAmount, value))
	}

	return amount, nil
}

// toReceipt converts a ledger receipt, mapping a failure to a gRPC status.
func toReceipt(receipt *ledger.Receipt, err error) (*rpc.ReceiptResponse, error) {
	if err != nil {
		return nil, rpc.ToStatus(err)
	}

	return &rpc.ReceiptResponse{
		TxID:    receipt.TxID,
		Vault:   rpc.NewVault(receipt.Vault, receipt.CommittedAt),
		Records: rpc.NewRecords(receipt.Records),
	}, nil
}

// toVault converts a ledger view.
func toVault(view *ledger.View) *rpc.Vault {
	if view == nil {
		return nil
	}

	return rpc.NewVault(view.Vault, view.Now)
}
