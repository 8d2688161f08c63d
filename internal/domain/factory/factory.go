package factory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

// Request carries the createVault parameters as received from a caller.
type Request struct {
	// Owner is the deploying caller, as a hex address.
	Owner string
	// Beneficiaries are hex addresses of the payout candidates.
	Beneficiaries []string
	// UnlockYears is the inactivity period in calendar years.
	UnlockYears int
	// Epitaph is the farewell message.
	Epitaph string
}

// requestSchema validates the scalar fields of a Request.
var requestSchema = z.Struct(z.Shape{
	"owner": z.String().
		Required(z.Message("owner is required")).
		TestFunc(isHexAddress, z.Message("owner must be a hex address")),
	"unlockYears": z.Int().
		Required(z.Message("unlock years is required")).
		GT(0, z.Message("unlock years must be positive")).
		LTE(domain.MaxUnlockYears, z.Message("unlock years is too large")),
	"epitaph": z.String().Optional(),
})

// beneficiarySchema validates a single beneficiary address.
var beneficiarySchema = z.String().
	Required(z.Message("beneficiary is required")).
	TestFunc(isHexAddress, z.Message("beneficiary must be a hex address"))

// Factory creates vaults with deterministic addresses.
type Factory struct {
	// address is the factory's own address, the base of derived vault addresses.
	address common.Address
	// nonce is the number of vaults deployed so far.
	nonce uint64
	// mu guards nonce.
	mu sync.Mutex
}

// New creates a factory at the given address that has already deployed nonce vaults.
func New(address common.Address, nonce uint64) *Factory {
	return &Factory{
		address: address,
		nonce:   nonce,
	}
}

// Address returns the factory address.
func (f *Factory) Address() common.Address {
	return f.address
}

// Nonce returns the nonce the next deployment will use.
func (f *Factory) Nonce() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.nonce
}

// Validate checks a Request and converts it into vault parameters without an address.
func Validate(req *Request) (*domain.Params, error) {
	if req == nil {
		return nil, domain.ErrInvalidConstruction
	}

	fields := map[string]any{
		"owner":       req.Owner,
		"unlockYears": req.UnlockYears,
		"epitaph":     req.Epitaph,
	}

	var validated struct {
		Owner       string
		UnlockYears int
		Epitaph     string
	}

	if errs := requestSchema.Parse(fields, &validated); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConstruction, errs)
	}

	if len(req.Beneficiaries) == 0 {
		return nil, fmt.Errorf("%w: at least one beneficiary is required", domain.ErrInvalidConstruction)
	}

	beneficiaries := make([]domain.Address, 0, len(req.Beneficiaries))

	for _, raw := range req.Beneficiaries {
		value := strings.TrimSpace(raw)
		if errs := beneficiarySchema.Validate(&value); len(errs) > 0 {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConstruction, errs)
		}

		beneficiaries = append(beneficiaries, common.HexToAddress(value))
	}

	return &domain.Params{
		Owner:         common.HexToAddress(validated.Owner),
		Beneficiaries: beneficiaries,
		UnlockYears:   req.UnlockYears,
		Epitaph:       req.Epitaph,
	}, nil
}

// Create deploys a vault owned by params.Owner at the next derived address.
// The nonce only advances when construction succeeds.
func (f *Factory) Create(params *domain.Params, now time.Time) (*domain.Vault, *domain.Event, error) {
	if params == nil {
		return nil, nil, domain.ErrInvalidConstruction
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	deployment := *params
	deployment.Address = crypto.CreateAddress(f.address, f.nonce)

	v, err := domain.New(&deployment, now)
	if err != nil {
		return nil, nil, err
	}

	f.nonce++

	return v, &domain.Event{
		Kind: domain.EventVaultCreated,
		From: v.Owner,
		To:   v.Address,
	}, nil
}

// isHexAddress reports whether the value is a non-zero hex address.
func isHexAddress(value *string, _ z.Ctx) bool {
	if value == nil || !common.IsHexAddress(*value) {
		return false
	}

	return common.HexToAddress(*value) != (common.Address{})
}
