package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vault.v1.VaultService"

// Method names of VaultService.
const (
	MethodCreateVault        = "CreateVault"
	MethodDeposit            = "Deposit"
	MethodTransfer           = "Transfer"
	MethodWithdraw           = "Withdraw"
	MethodAddBeneficiary     = "AddBeneficiary"
	MethodRemoveBeneficiary  = "RemoveBeneficiary"
	MethodRefreshActivity    = "RefreshActivity"
	MethodUpdateUnlockPeriod = "UpdateUnlockPeriod"
	MethodFinalPayout        = "FinalPayout"
	MethodGetVault           = "GetVault"
	MethodListVaults         = "ListVaults"
	MethodListRecords        = "ListRecords"
)

// FullMethod returns the gRPC path of a VaultService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// VaultServiceServer is the server API for VaultService.
type VaultServiceServer interface {
	CreateVault(ctx context.Context, req *CreateVaultRequest) (*ReceiptResponse, error)
	Deposit(ctx context.Context, req *DepositRequest) (*ReceiptResponse, error)
	Transfer(ctx context.Context, req *TransferRequest) (*ReceiptResponse, error)
	Withdraw(ctx context.Context, req *WithdrawRequest) (*ReceiptResponse, error)
	AddBeneficiary(ctx context.Context, req *BeneficiaryRequest) (*ReceiptResponse, error)
	RemoveBeneficiary(ctx context.Context, req *BeneficiaryRequest) (*ReceiptResponse, error)
	RefreshActivity(ctx context.Context, req *RefreshActivityRequest) (*ReceiptResponse, error)
	UpdateUnlockPeriod(ctx context.Context, req *UpdateUnlockPeriodRequest) (*ReceiptResponse, error)
	FinalPayout(ctx context.Context, req *FinalPayoutRequest) (*ReceiptResponse, error)
	GetVault(ctx context.Context, req *GetVaultRequest) (*VaultResponse, error)
	ListVaults(ctx context.Context, req *ListVaultsRequest) (*ListVaultsResponse, error)
	ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error)
}

// UnimplementedVaultServiceServer returns Unimplemented for every method.
// Embed it to stay forward compatible when methods are added.
type UnimplementedVaultServiceServer struct{}

func (UnimplementedVaultServiceServer) CreateVault(context.Context, *CreateVaultRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodCreateVault)
}

func (UnimplementedVaultServiceServer) Deposit(context.Context, *DepositRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodDeposit)
}

func (UnimplementedVaultServiceServer) Transfer(context.Context, *TransferRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodTransfer)
}

func (UnimplementedVaultServiceServer) Withdraw(context.Context, *WithdrawRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodWithdraw)
}

func (UnimplementedVaultServiceServer) AddBeneficiary(context.Context, *BeneficiaryRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodAddBeneficiary)
}

func (UnimplementedVaultServiceServer) RemoveBeneficiary(context.Context, *BeneficiaryRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodRemoveBeneficiary)
}

func (UnimplementedVaultServiceServer) RefreshActivity(
	context.Context,
	*RefreshActivityRequest,
) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodRefreshActivity)
}

func (UnimplementedVaultServiceServer) UpdateUnlockPeriod(
	context.Context,
	*UpdateUnlockPeriodRequest,
) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodUpdateUnlockPeriod)
}

func (UnimplementedVaultServiceServer) FinalPayout(context.Context, *FinalPayoutRequest) (*ReceiptResponse, error) {
	return nil, unimplemented(MethodFinalPayout)
}

func (UnimplementedVaultServiceServer) GetVault(context.Context, *GetVaultRequest) (*VaultResponse, error) {
	return nil, unimplemented(MethodGetVault)
}

func (UnimplementedVaultServiceServer) ListVaults(context.Context, *ListVaultsRequest) (*ListVaultsResponse, error) {
	return nil, unimplemented(MethodListVaults)
}

func (UnimplementedVaultServiceServer) ListRecords(
	context.Context,
	*ListRecordsRequest,
) (*ListRecordsResponse, error) {
	return nil, unimplemented(MethodListRecords)
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// VaultServiceDesc is the grpc.ServiceDesc for VaultService.
//
//nolint:gochecknoglobals // Service descriptors are registered by reference.
var VaultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCreateVault, Handler: unaryHandler(MethodCreateVault, VaultServiceServer.CreateVault)},
		{MethodName: MethodDeposit, Handler: unaryHandler(MethodDeposit, VaultServiceServer.Deposit)},
		{MethodName: MethodTransfer, Handler: unaryHandler(MethodTransfer, VaultServiceServer.Transfer)},
		{MethodName: MethodWithdraw, Handler: unaryHandler(MethodWithdraw, VaultServiceServer.Withdraw)},
		{MethodName: MethodAddBeneficiary, Handler: unaryHandler(MethodAddBeneficiary, VaultServiceServer.AddBeneficiary)},
		{
			MethodName: MethodRemoveBeneficiary,
			Handler:    unaryHandler(MethodRemoveBeneficiary, VaultServiceServer.RemoveBeneficiary),
		},
		{
			MethodName: MethodRefreshActivity,
			Handler:    unaryHandler(MethodRefreshActivity, VaultServiceServer.RefreshActivity),
		},
		{
			MethodName: MethodUpdateUnlockPeriod,
			Handler:    unaryHandler(MethodUpdateUnlockPeriod, VaultServiceServer.UpdateUnlockPeriod),
		},
		{MethodName: MethodFinalPayout, Handler: unaryHandler(MethodFinalPayout, VaultServiceServer.FinalPayout)},
		{MethodName: MethodGetVault, Handler: unaryHandler(MethodGetVault, VaultServiceServer.GetVault)},
		{MethodName: MethodListVaults, Handler: unaryHandler(MethodListVaults, VaultServiceServer.ListVaults)},
		{MethodName: MethodListRecords, Handler: unaryHandler(MethodListRecords, VaultServiceServer.ListRecords)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vault/v1/vault.proto",
}

// RegisterVaultServiceServer registers the implementation on a gRPC server.
func RegisterVaultServiceServer(registrar grpc.ServiceRegistrar, srv VaultServiceServer) {
	registrar.RegisterService(&VaultServiceDesc, srv)
}

// unaryHandler decodes the request and runs call through the server interceptor chain.
func unaryHandler[Req, Resp any](
	method string,
	call func(VaultServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(VaultServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*Req)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// VaultServiceClient is the client API for VaultService.
type VaultServiceClient interface {
	CreateVault(ctx context.Context, in *CreateVaultRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	AddBeneficiary(ctx context.Context, in *BeneficiaryRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	RemoveBeneficiary(ctx context.Context, in *BeneficiaryRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	RefreshActivity(ctx context.Context, in *RefreshActivityRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	UpdateUnlockPeriod(
		ctx context.Context,
		in *UpdateUnlockPeriodRequest,
		opts ...grpc.CallOption,
	) (*ReceiptResponse, error)
	FinalPayout(ctx context.Context, in *FinalPayoutRequest, opts ...grpc.CallOption) (*ReceiptResponse, error)
	GetVault(ctx context.Context, in *GetVaultRequest, opts ...grpc.CallOption) (*VaultResponse, error)
	ListVaults(ctx context.Context, in *ListVaultsRequest, opts ...grpc.CallOption) (*ListVaultsResponse, error)
	ListRecords(ctx context.Context, in *ListRecordsRequest, opts ...grpc.CallOption) (*ListRecordsResponse, error)
}

type vaultServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewVaultServiceClient creates a client stub over the connection.
// Calls use the JSON codec regardless of the connection defaults.
func NewVaultServiceClient(cc grpc.ClientConnInterface) VaultServiceClient {
	return &vaultServiceClient{cc: cc}
}

func (c *vaultServiceClient) CreateVault(
	ctx context.Context,
	in *CreateVaultRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodCreateVault, in, opts)
}

func (c *vaultServiceClient) Deposit(
	ctx context.Context,
	in *DepositRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodDeposit, in, opts)
}

func (c *vaultServiceClient) Transfer(
	ctx context.Context,
	in *TransferRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodTransfer, in, opts)
}

func (c *vaultServiceClient) Withdraw(
	ctx context.Context,
	in *WithdrawRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodWithdraw, in, opts)
}

func (c *vaultServiceClient) AddBeneficiary(
	ctx context.Context,
	in *BeneficiaryRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodAddBeneficiary, in, opts)
}

func (c *vaultServiceClient) RemoveBeneficiary(
	ctx context.Context,
	in *BeneficiaryRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodRemoveBeneficiary, in, opts)
}

func (c *vaultServiceClient) RefreshActivity(
	ctx context.Context,
	in *RefreshActivityRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodRefreshActivity, in, opts)
}

func (c *vaultServiceClient) UpdateUnlockPeriod(
	ctx context.Context,
	in *UpdateUnlockPeriodRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodUpdateUnlockPeriod, in, opts)
}

func (c *vaultServiceClient) FinalPayout(
	ctx context.Context,
	in *FinalPayoutRequest,
	opts ...grpc.CallOption,
) (*ReceiptResponse, error) {
	return invoke[ReceiptResponse](ctx, c.cc, MethodFinalPayout, in, opts)
}

func (c *vaultServiceClient) GetVault(
	ctx context.Context,
	in *GetVaultRequest,
	opts ...grpc.CallOption,
) (*VaultResponse, error) {
	return invoke[VaultResponse](ctx, c.cc, MethodGetVault, in, opts)
}

func (c *vaultServiceClient) ListVaults(
	ctx context.Context,
	in *ListVaultsRequest,
	opts ...grpc.CallOption,
) (*ListVaultsResponse, error) {
	return invoke[ListVaultsResponse](ctx, c.cc, MethodListVaults, in, opts)
}

func (c *vaultServiceClient) ListRecords(
	ctx context.Context,
	in *ListRecordsRequest,
	opts ...grpc.CallOption,
) (*ListRecordsResponse, error) {
	return invoke[ListRecordsResponse](ctx, c.cc, MethodListRecords, in, opts)
}

// invoke performs a unary call with the JSON content subtype.
func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)

	callOpts := make([]grpc.CallOption, 0, len(opts)+1)
	callOpts = append(callOpts, grpc.CallContentSubtype(CodecName))
	callOpts = append(callOpts, opts...)

	if err := cc.Invoke(ctx, FullMethod(method), in, out, callOpts...); err != nil {
		return nil, err
	}

	return out, nil
}
