package ledger

import (
	"context"
	"errors"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

const (
	// DefaultRecordsLimit is used when a records query has no positive limit.
	DefaultRecordsLimit = 100
	// MaxRecordsLimit caps a single records query.
	MaxRecordsLimit = 1000
)

// ErrNotFound is returned when no ledger has been persisted yet.
var ErrNotFound = errors.New("ledger not found")

// Snapshot is the persisted ledger state needed to resume operation.
type Snapshot struct {
	// Vaults are all deployed vaults, in deployment order.
	Vaults []*domain.Vault
	// LastSeq is the highest committed record sequence number.
	LastSeq uint64
}

// Repository defines persistence operations for the ledger.
type Repository interface {
	// Load returns every vault and the last committed sequence number.
	Load(ctx context.Context) (*Snapshot, error)
	// Commit atomically upserts the vault and appends its records.
	Commit(ctx context.Context, vault *domain.Vault, records []*domain.Record) error
	// Records returns up to limit records of a vault with Seq > afterSeq, oldest first.
	Records(ctx context.Context, vault domain.Address, afterSeq uint64, limit int) ([]*domain.Record, error)
	// Close releases the underlying resources.
	Close() error
}

// normalizeLimit clamps a records query limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecordsLimit
	case limit > MaxRecordsLimit:
		return MaxRecordsLimit
	default:
		return limit
	}
}
