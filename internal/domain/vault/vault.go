package vault

import (
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies an owner, a beneficiary, a depositor or a vault.
type Address = common.Address

const (
	// Year is the fixed calendar year used to convert unlock years into a period.
	Year = 365 * 24 * time.Hour

	// MaxUnlockYears bounds the unlock period so it fits into time.Duration.
	MaxUnlockYears = 200
)

// Params holds everything needed to construct a vault.
type Params struct {
	// Address is the vault address assigned by the factory.
	Address Address
	// Owner is the deploying caller.
	Owner Address
	// Beneficiaries are the identities allowed to trigger the final payout.
	Beneficiaries []Address
	// UnlockYears is the inactivity period expressed in calendar years.
	UnlockYears int
	// Epitaph is recorded at construction and surfaced by the final payout.
	Epitaph string
}

// Vault is the custodial dead-man's-switch state of a single deployment.
type Vault struct {
	// Address is the vault address.
	Address Address
	// Owner has exclusive administrative rights.
	Owner Address
	// Beneficiaries is the ordered beneficiary registry.
	Beneficiaries []Address
	// UnlockPeriod is the owner inactivity required before final payout.
	UnlockPeriod time.Duration
	// LastActivity is the most recent owner liveness signal.
	LastActivity time.Time
	// Epitaph is the immutable farewell message.
	Epitaph string
	// Balance is the native value held by the vault.
	Balance *big.Int
	// Sealed becomes true after the final payout and never changes again.
	Sealed bool
	// CreatedAt is the construction time.
	CreatedAt time.Time
	// SealedAt is the time of the final payout, zero while active.
	SealedAt time.Time
}

// UnlockPeriodFromYears converts calendar years into an unlock period.
func UnlockPeriodFromYears(years int) (time.Duration, error) {
	if years <= 0 || years > MaxUnlockYears {
		return 0, ErrInvalidUnlockPeriod
	}

	return time.Duration(years) * Year, nil
}

// New constructs an active vault with a zero balance and activity set to now.
func New(params *Params, now time.Time) (*Vault, error) {
	if params == nil || len(params.Beneficiaries) == 0 {
		return nil, ErrInvalidConstruction
	}

	if isZero(params.Owner) || isZero(params.Address) {
		return nil, ErrInvalidConstruction
	}

	for _, beneficiary := range params.Beneficiaries {
		if isZero(beneficiary) {
			return nil, ErrInvalidConstruction
		}
	}

	period, err := UnlockPeriodFromYears(params.UnlockYears)
	if err != nil {
		return nil, ErrInvalidConstruction
	}

	return &Vault{
		Address:       params.Address,
		Owner:         params.Owner,
		Beneficiaries: slices.Clone(params.Beneficiaries),
		UnlockPeriod:  period,
		LastActivity:  now,
		Epitaph:       params.Epitaph,
		Balance:       new(big.Int),
		CreatedAt:     now,
	}, nil
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}

	cloned := *v
	cloned.Beneficiaries = slices.Clone(v.Beneficiaries)
	cloned.Balance = cloneAmount(v.Balance)

	if cloned.Balance == nil {
		cloned.Balance = new(big.Int)
	}

	return &cloned
}

// IsBeneficiary reports whether the identity is in the registry.
func (v *Vault) IsBeneficiary(identity Address) bool {
	return slices.Contains(v.Beneficiaries, identity)
}

// UnlockAt returns the moment the final payout becomes eligible.
func (v *Vault) UnlockAt() time.Time {
	return v.LastActivity.Add(v.UnlockPeriod)
}

// Eligible reports whether the final payout may execute at the given time.
func (v *Vault) Eligible(now time.Time) bool {
	return !v.Sealed && now.Sub(v.LastActivity) >= v.UnlockPeriod
}

// Deposit credits an inbound transfer from any identity.
func (v *Vault) Deposit(from Address, amount *big.Int) (*Event, error) {
	if v.Sealed {
		return nil, ErrSealed
	}

	if !isValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	v.Balance.Add(v.Balance, amount)

	return &Event{
		Kind:   EventDeposit,
		From:   from,
		Amount: cloneAmount(amount),
	}, nil
}

// Transfer pays amount from the vault to an arbitrary recipient.
func (v *Vault) Transfer(caller, to Address, amount *big.Int, now time.Time) (*Event, error) {
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}

	if isZero(to) {
		return nil, ErrInvalidAddress
	}

	return v.pay(to, amount, now)
}

// Withdraw pays amount from the vault to the owner.
func (v *Vault) Withdraw(caller Address, amount *big.Int, now time.Time) (*Event, error) {
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}

	return v.pay(v.Owner, amount, now)
}

// AddBeneficiary registers an identity. Adding a present member is a no-op.
func (v *Vault) AddBeneficiary(caller, identity Address, now time.Time) error {
	if err := v.checkOwner(caller); err != nil {
		return err
	}

	if isZero(identity) {
		return ErrInvalidAddress
	}

	if !v.IsBeneficiary(identity) {
		v.Beneficiaries = append(v.Beneficiaries, identity)
	}

	v.LastActivity = now

	return nil
}

// RemoveBeneficiary drops every occurrence of identity. Removing an absent member is a no-op.
func (v *Vault) RemoveBeneficiary(caller, identity Address, now time.Time) error {
	if err := v.checkOwner(caller); err != nil {
		return err
	}

	v.Beneficiaries = slices.DeleteFunc(v.Beneficiaries, func(b Address) bool {
		return b == identity
	})
	v.LastActivity = now

	return nil
}

// RefreshActivity is the owner heartbeat that resets the dead-man's-switch timer.
func (v *Vault) RefreshActivity(caller Address, now time.Time) (*Event, error) {
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}

	v.LastActivity = now

	return &Event{
		Kind:      EventLastActivityUpdated,
		Timestamp: now,
	}, nil
}

// UpdateUnlockPeriod recomputes the unlock period from years.
// Elapsed inactivity is measured against the new period; the timer is not reset.
func (v *Vault) UpdateUnlockPeriod(caller Address, years int) (*Event, error) {
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}

	period, err := UnlockPeriodFromYears(years)
	if err != nil {
		return nil, err
	}

	v.UnlockPeriod = period

	return &Event{
		Kind:         EventUnlockPeriodUpdated,
		UnlockPeriod: period,
	}, nil
}

// FinalPayout pays the entire balance to the calling beneficiary and seals the vault.
// An empty target means the caller; any other target must equal the caller.
func (v *Vault) FinalPayout(caller, target Address, now time.Time) ([]*Event, error) {
	if !v.IsBeneficiary(caller) {
		return nil, ErrNotBeneficiary
	}

	if isZero(target) {
		target = caller
	}

	if target != caller {
		return nil, ErrNotBeneficiary
	}

	if v.Sealed {
		return nil, ErrSealed
	}

	if !v.Eligible(now) {
		return nil, ErrNotYetEligible
	}

	amount := v.Balance
	v.Balance = new(big.Int)
	v.Sealed = true
	v.SealedAt = now

	return []*Event{
		{
			Kind:   EventPayment,
			To:     target,
			Amount: amount,
		},
		{
			Kind:    EventGoodbyeWorld,
			Message: v.Epitaph,
		},
	}, nil
}

// checkOwner enforces the owner-only and not-sealed preconditions.
func (v *Vault) checkOwner(caller Address) error {
	if caller != v.Owner {
		return ErrNotOwner
	}

	if v.Sealed {
		return ErrSealed
	}

	return nil
}

// pay moves amount to the recipient and counts as owner activity.
func (v *Vault) pay(to Address, amount *big.Int, now time.Time) (*Event, error) {
	if !isValidAmount(amount) {
		return nil, ErrInvalidAmount
	}

	if amount.Cmp(v.Balance) > 0 {
		return nil, ErrInsufficientBalance
	}

	v.Balance.Sub(v.Balance, amount)
	v.LastActivity = now

	return &Event{
		Kind:   EventPayment,
		To:     to,
		Amount: cloneAmount(amount),
	}, nil
}

// isZero reports whether the address is unset.
func isZero(a Address) bool {
	return a == (Address{})
}

// isValidAmount reports whether the amount is set and not negative.
func isValidAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0
}
