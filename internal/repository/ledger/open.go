package ledger

import (
	"context"
	"fmt"

	"github.com/oshokin/deadman-vault/internal/config"
)

// Open returns the repository selected by the storage settings.
func Open(ctx context.Context, storage *config.Storage) (Repository, error) {
	switch storage.Driver {
	case "", config.DriverFile:
		return NewFileRepository(storage.StateFile), nil
	case config.DriverSQLite, config.DriverPostgres:
		return OpenSQL(ctx, storage.Driver, storage.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, storage.Driver)
	}
}
