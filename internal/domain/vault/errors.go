package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is returned when the caller lacks the owner or beneficiary role.
	ErrNotAuthorized = errors.New("caller is not authorized")
	// ErrNotOwner is returned when an owner-only operation is called by someone else.
	ErrNotOwner = fmt.Errorf("%w: caller is not the owner", ErrNotAuthorized)
	// ErrNotBeneficiary is returned when final payout is called by a non-beneficiary.
	ErrNotBeneficiary = fmt.Errorf("%w: not a beneficiary", ErrNotAuthorized)
	// ErrSealed is returned for any state change after the final payout.
	ErrSealed = errors.New("vault is sealed")
	// ErrNotYetEligible is returned when final payout is attempted too early.
	ErrNotYetEligible = errors.New("owner is still alive")
	// ErrInsufficientBalance is returned when a payment exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidConstruction is returned for bad vault construction parameters.
	ErrInvalidConstruction = errors.New("invalid vault construction")
	// ErrInvalidAmount is returned for negative or missing amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrInvalidUnlockPeriod is returned when the unlock period is out of range.
	ErrInvalidUnlockPeriod = errors.New("unlock period is out of range")
	// ErrInvalidAddress is returned when an identity is the zero address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrVaultNotFound is returned for an unknown vault address.
	ErrVaultNotFound = errors.New("vault not found")
)
