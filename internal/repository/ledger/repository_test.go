package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

var (
	ownerAddress       = common.HexToAddress("0x1111111111111111111111111111111111111111")
	beneficiaryAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")
	firstVaultAddress  = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	secondVaultAddress = common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	createdAt          = time.Date(2026, time.January, 2, 3, 4, 5, 6, time.UTC)
)

// sampleVault builds an active vault holding the given balance.
func sampleVault(address domain.Address, balance int64) *domain.Vault {
	return &domain.Vault{
		Address:       address,
		Owner:         ownerAddress,
		Beneficiaries: []domain.Address{beneficiaryAddress},
		UnlockPeriod:  domain.Year,
		LastActivity:  createdAt,
		Epitaph:       "Goodbye!",
		Balance:       big.NewInt(balance),
		CreatedAt:     createdAt,
	}
}

// sampleRecord builds a deposit record.
func sampleRecord(seq uint64, vault domain.Address, amount int64) *domain.Record {
	return &domain.Record{
		Seq:         seq,
		TxID:        fmt.Sprintf("tx-%d", seq),
		Vault:       vault,
		CommittedAt: createdAt.Add(time.Duration(seq) * time.Second), //nolint:gosec // Small test values.
		Event: domain.Event{
			Kind:   domain.EventDeposit,
			From:   ownerAddress,
			Amount: big.NewInt(amount),
		},
	}
}

// requireSameVault compares vaults field by field, using instant equality for times.
func requireSameVault(t *testing.T, expected, actual *domain.Vault) {
	t.Helper()

	require.Equal(t, expected.Address, actual.Address)
	require.Equal(t, expected.Owner, actual.Owner)
	require.Equal(t, expected.Beneficiaries, actual.Beneficiaries)
	require.Equal(t, expected.UnlockPeriod, actual.UnlockPeriod)
	require.True(t, expected.LastActivity.Equal(actual.LastActivity))
	require.Equal(t, expected.Epitaph, actual.Epitaph)
	require.Zero(t, expected.Balance.Cmp(actual.Balance))
	require.Equal(t, expected.Sealed, actual.Sealed)
	require.True(t, expected.CreatedAt.Equal(actual.CreatedAt))
	require.True(t, expected.SealedAt.Equal(actual.SealedAt))
}

// backends opens every locally available repository implementation.
func backends(t *testing.T) map[string]Repository {
	t.Helper()

	sqlRepo, err := OpenSQL(context.Background(), config.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, sqlRepo.Close())
	})

	return map[string]Repository{
		"file":   NewFileRepository(filepath.Join(t.TempDir(), "ledger.json")),
		"sqlite": sqlRepo,
	}
}

// TestRepository_CommitAndLoad verifies upserts and journal appends survive a reload.
func TestRepository_CommitAndLoad(t *testing.T) {
	t.Parallel()

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			first := sampleVault(firstVaultAddress, 0)
			require.NoError(t, repo.Commit(ctx, first, []*domain.Record{
				{Seq: 1, TxID: "tx-1", Vault: firstVaultAddress, CommittedAt: createdAt, Event: domain.Event{
					Kind: domain.EventVaultCreated,
					From: ownerAddress,
					To:   firstVaultAddress,
				}},
			}))

			second := sampleVault(secondVaultAddress, 0)
			require.NoError(t, repo.Commit(ctx, second, nil))

			first.Balance = big.NewInt(250)
			first.Sealed = true
			first.SealedAt = createdAt.Add(time.Hour)
			require.NoError(t, repo.Commit(ctx, first, []*domain.Record{sampleRecord(2, firstVaultAddress, 250)}))

			snapshot, err := repo.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(2), snapshot.LastSeq)
			require.Len(t, snapshot.Vaults, 2)

			loaded := make(map[domain.Address]*domain.Vault, len(snapshot.Vaults))
			for _, v := range snapshot.Vaults {
				loaded[v.Address] = v
			}

			requireSameVault(t, first, loaded[firstVaultAddress])
			requireSameVault(t, second, loaded[secondVaultAddress])
		})
	}
}

// TestRepository_Records checks filtering by vault, the afterSeq cursor and the limit.
func TestRepository_Records(t *testing.T) {
	t.Parallel()

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()

			require.NoError(t, repo.Commit(ctx, sampleVault(firstVaultAddress, 3), []*domain.Record{
				sampleRecord(1, firstVaultAddress, 1),
				sampleRecord(2, firstVaultAddress, 2),
			}))
			require.NoError(t, repo.Commit(ctx, sampleVault(secondVaultAddress, 5), []*domain.Record{
				sampleRecord(3, secondVaultAddress, 5),
			}))
			require.NoError(t, repo.Commit(ctx, sampleVault(firstVaultAddress, 6), []*domain.Record{
				sampleRecord(4, firstVaultAddress, 3),
			}))

			records, err := repo.Records(ctx, firstVaultAddress, 0, 0)
			require.NoError(t, err)
			require.Len(t, records, 3)
			require.Equal(t, []uint64{1, 2, 4}, []uint64{records[0].Seq, records[1].Seq, records[2].Seq})
			require.Equal(t, domain.EventDeposit, records[2].Kind)
			require.Equal(t, ownerAddress, records[2].From)
			require.Zero(t, big.NewInt(3).Cmp(records[2].Amount))
			require.Equal(t, "tx-4", records[2].TxID)
			require.True(t, createdAt.Add(4*time.Second).Equal(records[2].CommittedAt))

			page, err := repo.Records(ctx, firstVaultAddress, 1, 1)
			require.NoError(t, err)
			require.Len(t, page, 1)
			require.Equal(t, uint64(2), page[0].Seq)

			empty, err := repo.Records(ctx, common.HexToAddress("0xdead"), 0, 10)
			require.NoError(t, err)
			require.Empty(t, empty)
		})
	}
}

// TestFileRepository_LoadMissingFile returns ErrNotFound before the first commit.
func TestFileRepository_LoadMissingFile(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "ledger.json"))

	snapshot, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, snapshot)

	records, err := repo.Records(context.Background(), firstVaultAddress, 0, 10)
	require.NoError(t, err)
	require.Empty(t, records)
}

// TestFileRepository_FailedWriteKeepsCache ensures a failed commit is not visible afterwards.
func TestFileRepository_FailedWriteKeepsCache(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing-dir", "ledger.json"))

	err := repo.Commit(context.Background(), sampleVault(firstVaultAddress, 1), []*domain.Record{
		sampleRecord(1, firstVaultAddress, 1),
	})
	require.Error(t, err)

	records, err := repo.Records(context.Background(), firstVaultAddress, 0, 10)
	require.NoError(t, err)
	require.Empty(t, records)
}

// TestFileRepository_ReopenReadsDisk verifies a fresh instance sees committed state.
func TestFileRepository_ReopenReadsDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.json")
	ctx := context.Background()

	require.NoError(t, NewFileRepository(path).Commit(ctx, sampleVault(firstVaultAddress, 42), []*domain.Record{
		sampleRecord(7, firstVaultAddress, 42),
	}))

	snapshot, err := NewFileRepository(path).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), snapshot.LastSeq)
	require.Len(t, snapshot.Vaults, 1)
	requireSameVault(t, sampleVault(firstVaultAddress, 42), snapshot.Vaults[0])
}

// TestSQLRepository_CommitRollsBackOnRecordFailure uses sqlmock to verify transaction handling.
func TestSQLRepository_CommitRollsBackOnRecordFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSQLRepository(sqlx.NewDb(db, config.DriverPostgres))

	t.Cleanup(func() {
		_ = repo.Close()
	})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO vaults`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO records`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = repo.Commit(context.Background(), sampleVault(firstVaultAddress, 1), []*domain.Record{
		sampleRecord(1, firstVaultAddress, 1),
	})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLRepository_RecordsUsesDriverPlaceholders checks query rebinding for postgres.
func TestSQLRepository_RecordsUsesDriverPlaceholders(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewSQLRepository(sqlx.NewDb(db, config.DriverPostgres))

	t.Cleanup(func() {
		_ = repo.Close()
	})

	rows := sqlmock.NewRows([]string{
		"seq", "tx_id", "vault", "committed_at", "kind", "from_addr",
		"to_addr", "amount", "unlock_period", "event_time", "message",
	}).AddRow(int64(5), "tx-5", firstVaultAddress.Hex(), createdAt.UnixNano(), "GoodbyeWorld", "", "", "", int64(0), int64(0), "Goodbye!")

	mock.ExpectQuery(`WHERE vault = \$1 AND seq > \$2 ORDER BY seq LIMIT \$3`).
		WithArgs(firstVaultAddress.Hex(), int64(4), DefaultRecordsLimit).
		WillReturnRows(rows)

	records, err := repo.Records(context.Background(), firstVaultAddress, 4, -1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, domain.EventGoodbyeWorld, records[0].Kind)
	require.Equal(t, "Goodbye!", records[0].Message)
	require.Nil(t, records[0].Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestOpen_SelectsBackend maps storage settings onto implementations.
func TestOpen_SelectsBackend(t *testing.T) {
	t.Parallel()

	repo, err := Open(context.Background(), &config.Storage{
		Driver:    config.DriverFile,
		StateFile: filepath.Join(t.TempDir(), "ledger.json"),
	})
	require.NoError(t, err)
	require.IsType(t, &FileRepository{}, repo)

	_, err = Open(context.Background(), &config.Storage{Driver: "mongo"})
	require.ErrorIs(t, err, errUnsupportedDriver)
}
