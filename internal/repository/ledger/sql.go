package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Registers the postgres driver.
	_ "modernc.org/sqlite" // Registers the sqlite driver.

	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	"github.com/oshokin/deadman-vault/internal/logger"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 5 * time.Minute

	// sqliteBusyTimeout is how long sqlite waits on a locked database, in milliseconds.
	sqliteBusyTimeout = 5000
)

// schema is portable between sqlite and postgres.
// Times are unix nanoseconds, amounts are decimal strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS vaults (
		address       TEXT PRIMARY KEY,
		owner         TEXT NOT NULL,
		beneficiaries TEXT NOT NULL,
		unlock_period BIGINT NOT NULL,
		last_activity BIGINT NOT NULL,
		epitaph       TEXT NOT NULL,
		balance       TEXT NOT NULL,
		sealed        INTEGER NOT NULL,
		created_at    BIGINT NOT NULL,
		sealed_at     BIGINT NOT NULL,
		created_seq   BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		seq           BIGINT PRIMARY KEY,
		tx_id         TEXT NOT NULL,
		vault         TEXT NOT NULL,
		committed_at  BIGINT NOT NULL,
		kind          TEXT NOT NULL,
		from_addr     TEXT NOT NULL,
		to_addr       TEXT NOT NULL,
		amount        TEXT NOT NULL,
		unlock_period BIGINT NOT NULL,
		event_time    BIGINT NOT NULL,
		message       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS records_vault_seq ON records (vault, seq)`,
}

const (
	upsertVaultQuery = `INSERT INTO vaults (
		address, owner, beneficiaries, unlock_period, last_activity,
		epitaph, balance, sealed, created_at, sealed_at, created_seq
	) VALUES (
		:address, :owner, :beneficiaries, :unlock_period, :last_activity,
		:epitaph, :balance, :sealed, :created_at, :sealed_at, :created_seq
	) ON CONFLICT (address) DO UPDATE SET
		owner = excluded.owner,
		beneficiaries = excluded.beneficiaries,
		unlock_period = excluded.unlock_period,
		last_activity = excluded.last_activity,
		balance = excluded.balance,
		sealed = excluded.sealed,
		sealed_at = excluded.sealed_at`

	insertRecordQuery = `INSERT INTO records (
		seq, tx_id, vault, committed_at, kind, from_addr,
		to_addr, amount, unlock_period, event_time, message
	) VALUES (
		:seq, :tx_id, :vault, :committed_at, :kind, :from_addr,
		:to_addr, :amount, :unlock_period, :event_time, :message
	)`

	selectVaultsQuery = `SELECT
		address, owner, beneficiaries, unlock_period, last_activity,
		epitaph, balance, sealed, created_at, sealed_at, created_seq
	FROM vaults ORDER BY created_seq, address`

	selectLastSeqQuery = `SELECT COALESCE(MAX(seq), 0) FROM records`

	selectRecordsQuery = `SELECT
		seq, tx_id, vault, committed_at, kind, from_addr,
		to_addr, amount, unlock_period, event_time, message
	FROM records WHERE vault = ? AND seq > ? ORDER BY seq LIMIT ?`
)

var errUnsupportedDriver = errors.New("unsupported sql driver")

//nolint:gochecknoinits // sqlx does not know the modernc driver name.
func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// vaultRow is the SQL form of a vault.
type vaultRow struct {
	Address       string `db:"address"`
	Owner         string `db:"owner"`
	Beneficiaries string `db:"beneficiaries"`
	UnlockPeriod  int64  `db:"unlock_period"`
	LastActivity  int64  `db:"last_activity"`
	Epitaph       string `db:"epitaph"`
	Balance       string `db:"balance"`
	Sealed        int64  `db:"sealed"`
	CreatedAt     int64  `db:"created_at"`
	SealedAt      int64  `db:"sealed_at"`
	CreatedSeq    int64  `db:"created_seq"`
}

// recordRow is the SQL form of a journal record.
type recordRow struct {
	Seq          int64  `db:"seq"`
	TxID         string `db:"tx_id"`
	Vault        string `db:"vault"`
	CommittedAt  int64  `db:"committed_at"`
	Kind         string `db:"kind"`
	From         string `db:"from_addr"`
	To           string `db:"to_addr"`
	Amount       string `db:"amount"`
	UnlockPeriod int64  `db:"unlock_period"`
	EventTime    int64  `db:"event_time"`
	Message      string `db:"message"`
}

// SQLRepository persists the ledger in sqlite or postgres.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository wraps an open database. The schema must already exist.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// OpenSQL connects to the database, tunes the pool for the driver and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	if driver != config.DriverSQLite && driver != config.DriverPostgres {
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, driver)
	}

	logger.InfoKV(ctx, "Connecting to ledger database", "driver", driver)

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}

	if err = tune(ctx, db, driver); err != nil {
		_ = db.Close()

		return nil, err
	}

	repo := NewSQLRepository(db)
	if err = repo.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	return repo, nil
}

// tune applies driver-specific connection settings.
func tune(ctx context.Context, db *sqlx.DB, driver string) error {
	if driver == config.DriverPostgres {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		return nil
	}

	// A single connection serializes writers and keeps the pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return fmt.Errorf("set journal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA busy_timeout = %d`, sqliteBusyTimeout)); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	return nil
}

// Migrate creates the ledger tables if they do not exist.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, statement := range schema {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// Load returns every vault and the last committed sequence number.
func (r *SQLRepository) Load(ctx context.Context) (*Snapshot, error) {
	var rows []vaultRow
	if err := r.db.SelectContext(ctx, &rows, selectVaultsQuery); err != nil {
		return nil, fmt.Errorf("select vaults: %w", err)
	}

	var lastSeq int64
	if err := r.db.GetContext(ctx, &lastSeq, selectLastSeqQuery); err != nil {
		return nil, fmt.Errorf("select last sequence: %w", err)
	}

	snapshot := &Snapshot{
		Vaults:  make([]*domain.Vault, 0, len(rows)),
		LastSeq: uint64(lastSeq), //nolint:gosec // Sequence numbers are never negative.
	}

	for i := range rows {
		v, err := fromVaultRow(&rows[i])
		if err != nil {
			return nil, err
		}

		snapshot.Vaults = append(snapshot.Vaults, v)
	}

	return snapshot, nil
}

// Commit upserts the vault and appends its records in one transaction.
func (r *SQLRepository) Commit(ctx context.Context, v *domain.Vault, records []*domain.Record) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}

		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.ErrorKV(ctx, "Failed to roll back ledger commit", "error", rollbackErr)
		}
	}()

	row := toVaultRow(v)
	if len(records) > 0 {
		row.CreatedSeq = int64(records[0].Seq) //nolint:gosec // Sequence numbers fit into int64.
	}

	if _, err = tx.NamedExecContext(ctx, upsertVaultQuery, row); err != nil {
		return fmt.Errorf("upsert vault %s: %w", row.Address, err)
	}

	for _, record := range records {
		if _, err = tx.NamedExecContext(ctx, insertRecordQuery, toRecordRow(record)); err != nil {
			return fmt.Errorf("insert record %d: %w", record.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Records returns up to limit records of a vault with Seq > afterSeq.
func (r *SQLRepository) Records(
	ctx context.Context,
	vault domain.Address,
	afterSeq uint64,
	limit int,
) ([]*domain.Record, error) {
	var rows []recordRow

	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectRecordsQuery),
		vault.Hex(), int64(afterSeq), normalizeLimit(limit)) //nolint:gosec // Sequence numbers fit into int64.
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	result := make([]*domain.Record, 0, len(rows))

	for i := range rows {
		record, err := fromRecordRow(&rows[i])
		if err != nil {
			return nil, err
		}

		result = append(result, record)
	}

	return result, nil
}

// Close closes the database.
func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	return r.db.Close()
}

func toVaultRow(v *domain.Vault) *vaultRow {
	beneficiaries := make([]string, 0, len(v.Beneficiaries))
	for _, b := range v.Beneficiaries {
		beneficiaries = append(beneficiaries, b.Hex())
	}

	var sealed int64
	if v.Sealed {
		sealed = 1
	}

	return &vaultRow{
		Address:       v.Address.Hex(),
		Owner:         v.Owner.Hex(),
		Beneficiaries: strings.Join(beneficiaries, ","),
		UnlockPeriod:  int64(v.UnlockPeriod / time.Second),
		LastActivity:  toNanos(v.LastActivity),
		Epitaph:       v.Epitaph,
		Balance:       formatAmount(v.Balance),
		Sealed:        sealed,
		CreatedAt:     toNanos(v.CreatedAt),
		SealedAt:      toNanos(v.SealedAt),
	}
}

func fromVaultRow(row *vaultRow) (*domain.Vault, error) {
	balance, err := parseAmount(row.Balance)
	if err != nil {
		return nil, fmt.Errorf("vault %s balance: %w", row.Address, err)
	}

	if balance == nil {
		balance = new(big.Int)
	}

	var beneficiaries []domain.Address
	if row.Beneficiaries != "" {
		for _, b := range strings.Split(row.Beneficiaries, ",") {
			beneficiaries = append(beneficiaries, common.HexToAddress(b))
		}
	}

	return &domain.Vault{
		Address:       common.HexToAddress(row.Address),
		Owner:         common.HexToAddress(row.Owner),
		Beneficiaries: beneficiaries,
		UnlockPeriod:  time.Duration(row.UnlockPeriod) * time.Second,
		LastActivity:  fromNanos(row.LastActivity),
		Epitaph:       row.Epitaph,
		Balance:       balance,
		Sealed:        row.Sealed != 0,
		CreatedAt:     fromNanos(row.CreatedAt),
		SealedAt:      fromNanos(row.SealedAt),
	}, nil
}

func toRecordRow(r *domain.Record) *recordRow {
	return &recordRow{
		Seq:          int64(r.Seq), //nolint:gosec // Sequence numbers fit into int64.
		TxID:         r.TxID,
		Vault:        r.Vault.Hex(),
		CommittedAt:  toNanos(r.CommittedAt),
		Kind:         string(r.Kind),
		From:         formatAddress(r.From),
		To:           formatAddress(r.To),
		Amount:       formatAmount(r.Amount),
		UnlockPeriod: int64(r.UnlockPeriod / time.Second),
		EventTime:    toNanos(r.Timestamp),
		Message:      r.Message,
	}
}

func fromRecordRow(row *recordRow) (*domain.Record, error) {
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("record %d amount: %w", row.Seq, err)
	}

	return &domain.Record{
		Seq:         uint64(row.Seq), //nolint:gosec // Sequence numbers are never negative.
		TxID:        row.TxID,
		Vault:       common.HexToAddress(row.Vault),
		CommittedAt: fromNanos(row.CommittedAt),
		Event: domain.Event{
			Kind:         domain.EventKind(row.Kind),
			From:         parseAddress(row.From),
			To:           parseAddress(row.To),
			Amount:       amount,
			UnlockPeriod: time.Duration(row.UnlockPeriod) * time.Second,
			Timestamp:    fromNanos(row.EventTime),
			Message:      row.Message,
		},
	}, nil
}

// toNanos stores the zero time as 0.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}
