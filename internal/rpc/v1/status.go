package rpc

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

// ErrorDomain is the ErrorInfo domain of vault rejections.
const ErrorDomain = "vault"

// Stable rejection reasons carried in google.rpc.ErrorInfo.
const (
	ReasonNotAuthorized       = "NOT_AUTHORIZED"
	ReasonSealed              = "SEALED"
	ReasonNotYetEligible      = "NOT_YET_ELIGIBLE"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonInvalidConstruction = "INVALID_CONSTRUCTION"
	ReasonInvalidAmount       = "INVALID_AMOUNT"
	ReasonInvalidUnlockPeriod = "INVALID_UNLOCK_PERIOD"
	ReasonInvalidAddress      = "INVALID_ADDRESS"
	ReasonVaultNotFound       = "VAULT_NOT_FOUND"
)

// rejection binds a domain sentinel to its status code and reason.
type rejection struct {
	err    error
	code   codes.Code
	reason string
}

// rejections is ordered; the first sentinel matched by errors.Is wins.
//
//nolint:gochecknoglobals // Static lookup table.
var rejections = []rejection{
	{err: domain.ErrNotAuthorized, code: codes.PermissionDenied, reason: ReasonNotAuthorized},
	{err: domain.ErrSealed, code: codes.FailedPrecondition, reason: ReasonSealed},
	{err: domain.ErrNotYetEligible, code: codes.FailedPrecondition, reason: ReasonNotYetEligible},
	{err: domain.ErrInsufficientBalance, code: codes.FailedPrecondition, reason: ReasonInsufficientBalance},
	{err: domain.ErrInvalidConstruction, code: codes.InvalidArgument, reason: ReasonInvalidConstruction},
	{err: domain.ErrInvalidAmount, code: codes.InvalidArgument, reason: ReasonInvalidAmount},
	{err: domain.ErrInvalidUnlockPeriod, code: codes.InvalidArgument, reason: ReasonInvalidUnlockPeriod},
	{err: domain.ErrInvalidAddress, code: codes.InvalidArgument, reason: ReasonInvalidAddress},
	{err: domain.ErrVaultNotFound, code: codes.NotFound, reason: ReasonVaultNotFound},
}

// ToStatus converts an error into a gRPC status error.
// Domain rejections keep their message and gain an ErrorInfo detail;
// anything else becomes Internal without leaking the cause.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, r := range rejections {
		if !errors.Is(err, r.err) {
			continue
		}

		st := status.New(r.code, err.Error())

		detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason: r.reason,
			Domain: ErrorDomain,
		})
		if detailErr != nil {
			return st.Err()
		}

		return detailed.Err()
	}

	return status.Error(codes.Internal, "internal ledger error")
}

// Reason returns the ErrorInfo reason of a status error, if present.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}

	for _, detail := range st.Details() {
		if info, isInfo := detail.(*errdetails.ErrorInfo); isInfo && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}

	return ""
}

// FromStatus converts a status error back into an error matching the domain sentinel.
// Errors without a known reason are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}

	reason := Reason(err)
	if reason == "" {
		return err
	}

	for _, r := range rejections {
		if r.reason == reason {
			return &remoteError{sentinel: r.err, message: status.Convert(err).Message()}
		}
	}

	return err
}

// remoteError is a rejection reported by the server.
type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string {
	return e.message
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}
