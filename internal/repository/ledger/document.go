package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

// ledgerDocument is the on-disk layout of the file repository.
type ledgerDocument struct {
	Vaults  []vaultDocument  `json:"vaults"`
	Records []recordDocument `json:"records"`
}

// vaultDocument is the JSON form of a vault.
// Amounts are decimal strings and durations are whole seconds.
type vaultDocument struct {
	Address       string   `json:"address"`
	Owner         string   `json:"owner"`
	Beneficiaries []string `json:"beneficiaries"`
	UnlockPeriod  int64    `json:"unlock_period_seconds"`
	LastActivity  string   `json:"last_activity"`
	Epitaph       string   `json:"epitaph"`
	Balance       string   `json:"balance"`
	Sealed        bool     `json:"sealed"`
	CreatedAt     string   `json:"created_at"`
	SealedAt      string   `json:"sealed_at,omitempty"`
}

// recordDocument is the JSON form of a journal record.
type recordDocument struct {
	Seq          uint64 `json:"seq"`
	TxID         string `json:"tx_id"`
	Vault        string `json:"vault"`
	CommittedAt  string `json:"committed_at"`
	Kind         string `json:"kind"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	Amount       string `json:"amount,omitempty"`
	UnlockPeriod int64  `json:"unlock_period_seconds,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	Message      string `json:"message,omitempty"`
}

// toVaultDocument converts the domain vault into its JSON form.
func toVaultDocument(v *domain.Vault) vaultDocument {
	beneficiaries := make([]string, 0, len(v.Beneficiaries))
	for _, b := range v.Beneficiaries {
		beneficiaries = append(beneficiaries, b.Hex())
	}

	return vaultDocument{
		Address:       v.Address.Hex(),
		Owner:         v.Owner.Hex(),
		Beneficiaries: beneficiaries,
		UnlockPeriod:  int64(v.UnlockPeriod / time.Second),
		LastActivity:  formatTime(v.LastActivity),
		Epitaph:       v.Epitaph,
		Balance:       formatAmount(v.Balance),
		Sealed:        v.Sealed,
		CreatedAt:     formatTime(v.CreatedAt),
		SealedAt:      formatTime(v.SealedAt),
	}
}

// fromVaultDocument converts the JSON form back into a domain vault.
func fromVaultDocument(doc *vaultDocument) (*domain.Vault, error) {
	beneficiaries := make([]domain.Address, 0, len(doc.Beneficiaries))
	for _, b := range doc.Beneficiaries {
		beneficiaries = append(beneficiaries, common.HexToAddress(b))
	}

	balance, err := parseAmount(doc.Balance)
	if err != nil {
		return nil, fmt.Errorf("vault %s balance: %w", doc.Address, err)
	}

	lastActivity, err := parseTime(doc.LastActivity)
	if err != nil {
		return nil, fmt.Errorf("vault %s last activity: %w", doc.Address, err)
	}

	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("vault %s created at: %w", doc.Address, err)
	}

	sealedAt, err := parseTime(doc.SealedAt)
	if err != nil {
		return nil, fmt.Errorf("vault %s sealed at: %w", doc.Address, err)
	}

	if balance == nil {
		balance = new(big.Int)
	}

	return &domain.Vault{
		Address:       common.HexToAddress(doc.Address),
		Owner:         common.HexToAddress(doc.Owner),
		Beneficiaries: beneficiaries,
		UnlockPeriod:  time.Duration(doc.UnlockPeriod) * time.Second,
		LastActivity:  lastActivity,
		Epitaph:       doc.Epitaph,
		Balance:       balance,
		Sealed:        doc.Sealed,
		CreatedAt:     createdAt,
		SealedAt:      sealedAt,
	}, nil
}

// toRecordDocument converts a journal record into its JSON form.
func toRecordDocument(r *domain.Record) recordDocument {
	return recordDocument{
		Seq:          r.Seq,
		TxID:         r.TxID,
		Vault:        r.Vault.Hex(),
		CommittedAt:  formatTime(r.CommittedAt),
		Kind:         string(r.Kind),
		From:         formatAddress(r.From),
		To:           formatAddress(r.To),
		Amount:       formatAmount(r.Amount),
		UnlockPeriod: int64(r.UnlockPeriod / time.Second),
		Timestamp:    formatTime(r.Timestamp),
		Message:      r.Message,
	}
}

// fromRecordDocument converts the JSON form back into a journal record.
func fromRecordDocument(doc *recordDocument) (*domain.Record, error) {
	amount, err := parseAmount(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("record %d amount: %w", doc.Seq, err)
	}

	committedAt, err := parseTime(doc.CommittedAt)
	if err != nil {
		return nil, fmt.Errorf("record %d committed at: %w", doc.Seq, err)
	}

	timestamp, err := parseTime(doc.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("record %d timestamp: %w", doc.Seq, err)
	}

	return &domain.Record{
		Seq:         doc.Seq,
		TxID:        doc.TxID,
		Vault:       common.HexToAddress(doc.Vault),
		CommittedAt: committedAt,
		Event: domain.Event{
			Kind:         domain.EventKind(doc.Kind),
			From:         parseAddress(doc.From),
			To:           parseAddress(doc.To),
			Amount:       amount,
			UnlockPeriod: time.Duration(doc.UnlockPeriod) * time.Second,
			Timestamp:    timestamp,
			Message:      doc.Message,
		},
	}, nil
}

// formatTime renders a UTC RFC 3339 timestamp, or an empty string for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}

// formatAmount renders a decimal amount, or an empty string for nil.
func formatAmount(v *big.Int) string {
	if v == nil {
		return ""
	}

	return v.String()
}

// parseAmount is the inverse of formatAmount.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // A missing amount is valid for most record kinds.
	}

	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}

	return v, nil
}

// formatAddress renders a hex address, or an empty string for the zero address.
func formatAddress(a domain.Address) string {
	if a == (domain.Address{}) {
		return ""
	}

	return a.Hex()
}

// parseAddress is the inverse of formatAddress.
func parseAddress(s string) domain.Address {
	if s == "" {
		return domain.Address{}
	}

	return common.HexToAddress(s)
}
