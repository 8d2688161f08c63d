package rpc

import (
	"time"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

// NewVault converts a domain vault into its wire form, deriving the timer fields at now.
func NewVault(v *domain.Vault, now time.Time) *Vault {
	if v == nil {
		return nil
	}

	beneficiaries := make([]string, 0, len(v.Beneficiaries))
	for _, b := range v.Beneficiaries {
		beneficiaries = append(beneficiaries, b.Hex())
	}

	balance := "0"
	if v.Balance != nil {
		balance = v.Balance.String()
	}

	return &Vault{
		Address:             v.Address.Hex(),
		Owner:               v.Owner.Hex(),
		Beneficiaries:       beneficiaries,
		UnlockPeriodSeconds: int64(v.UnlockPeriod / time.Second),
		LastActivity:        v.LastActivity,
		Epitaph:             v.Epitaph,
		Balance:             balance,
		Sealed:              v.Sealed,
		CreatedAt:           v.CreatedAt,
		SealedAt:            v.SealedAt,
		UnlockAt:            v.UnlockAt(),
		Eligible:            v.Eligible(now),
	}
}

// NewRecord converts a journal record into its wire form.
func NewRecord(r *domain.Record) *Record {
	if r == nil {
		return nil
	}

	result := &Record{
		Seq:                 r.Seq,
		TxID:                r.TxID,
		Vault:               r.Vault.Hex(),
		CommittedAt:         r.CommittedAt,
		Kind:                string(r.Kind),
		UnlockPeriodSeconds: int64(r.UnlockPeriod / time.Second),
		Timestamp:           r.Timestamp,
		Message:             r.Message,
	}

	if r.From != (domain.Address{}) {
		result.From = r.From.Hex()
	}

	if r.To != (domain.Address{}) {
		result.To = r.To.Hex()
	}

	if r.Amount != nil {
		result.Amount = r.Amount.String()
	}

	return result
}

// NewRecords converts a slice of journal records.
func NewRecords(records []*domain.Record) []*Record {
	result := make([]*Record, 0, len(records))
	for _, r := range records {
		result = append(result, NewRecord(r))
	}

	return result
}
