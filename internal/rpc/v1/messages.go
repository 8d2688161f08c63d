package rpc

import "time"

// Vault is the wire form of a vault with its derived timer fields.
type Vault struct {
	Address             string    `json:"address"`
	Owner               string    `json:"owner"`
	Beneficiaries       []string  `json:"beneficiaries"`
	UnlockPeriodSeconds int64     `json:"unlock_period_seconds"`
	LastActivity        time.Time `json:"last_activity"`
	Epitaph             string    `json:"epitaph"`
	Balance             string    `json:"balance"`
	Sealed              bool      `json:"sealed"`
	CreatedAt           time.Time `json:"created_at"`
	SealedAt            time.Time `json:"sealed_at,omitzero"`
	UnlockAt            time.Time `json:"unlock_at"`
	Eligible            bool      `json:"eligible"`
}

// Record is the wire form of a journal entry.
type Record struct {
	Seq                 uint64    `json:"seq"`
	TxID                string    `json:"tx_id"`
	Vault               string    `json:"vault"`
	CommittedAt         time.Time `json:"committed_at"`
	Kind                string    `json:"kind"`
	From                string    `json:"from,omitempty"`
	To                  string    `json:"to,omitempty"`
	Amount              string    `json:"amount,omitempty"`
	UnlockPeriodSeconds int64     `json:"unlock_period_seconds,omitempty"`
	Timestamp           time.Time `json:"timestamp,omitzero"`
	Message             string    `json:"message,omitempty"`
}

// CreateVaultRequest deploys a vault owned by the authenticated caller.
type CreateVaultRequest struct {
	Beneficiaries []string `json:"beneficiaries"`
	UnlockYears   int      `json:"unlock_years"`
	Epitaph       string   `json:"epitaph"`
}

// DepositRequest credits value sent by the caller. Amount is a decimal integer.
type DepositRequest struct {
	Vault  string `json:"vault"`
	Amount string `json:"amount"`
}

// TransferRequest pays value from the vault to a recipient.
type TransferRequest struct {
	Vault  string `json:"vault"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// WithdrawRequest pays value from the vault to its owner.
type WithdrawRequest struct {
	Vault  string `json:"vault"`
	Amount string `json:"amount"`
}

// BeneficiaryRequest adds or removes a beneficiary.
type BeneficiaryRequest struct {
	Vault       string `json:"vault"`
	Beneficiary string `json:"beneficiary"`
}

// RefreshActivityRequest records an owner heartbeat.
type RefreshActivityRequest struct {
	Vault string `json:"vault"`
}

// UpdateUnlockPeriodRequest changes the inactivity period.
type UpdateUnlockPeriodRequest struct {
	Vault string `json:"vault"`
	Years int    `json:"years"`
}

// FinalPayoutRequest pays the whole balance to the calling beneficiary.
// An empty Target means the caller.
type FinalPayoutRequest struct {
	Vault  string `json:"vault"`
	Target string `json:"target,omitempty"`
}

// GetVaultRequest reads a single vault.
type GetVaultRequest struct {
	Vault string `json:"vault"`
}

// ListVaultsRequest reads every vault.
type ListVaultsRequest struct{}

// ListRecordsRequest reads journal entries of a vault with Seq > AfterSeq.
type ListRecordsRequest struct {
	Vault    string `json:"vault"`
	AfterSeq uint64 `json:"after_seq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// ReceiptResponse describes a committed operation.
type ReceiptResponse struct {
	TxID    string    `json:"tx_id"`
	Vault   *Vault    `json:"vault"`
	Records []*Record `json:"records"`
}

// VaultResponse carries a single vault.
type VaultResponse struct {
	Vault *Vault `json:"vault"`
}

// ListVaultsResponse carries every vault in deployment order.
type ListVaultsResponse struct {
	Vaults []*Vault `json:"vaults"`
}

// ListRecordsResponse carries journal entries, oldest first.
type ListRecordsResponse struct {
	Records []*Record `json:"records"`
}
