package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oshokin/deadman-vault/internal/clock"
	"github.com/oshokin/deadman-vault/internal/domain/factory"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	"github.com/oshokin/deadman-vault/internal/logger"
	repo "github.com/oshokin/deadman-vault/internal/repository/ledger"
)

// tracerName identifies spans produced by the ledger.
const tracerName = "github.com/oshokin/deadman-vault/internal/service/ledger"

// Receipt describes a committed operation.
type Receipt struct {
	// TxID identifies the operation.
	TxID string
	// CommittedAt is the ledger time of the commit.
	CommittedAt time.Time
	// Vault is the vault state after the operation.
	Vault *domain.Vault
	// Records are the journal entries the operation emitted.
	Records []*domain.Record
}

// View is a read-only vault snapshot with derived timer fields.
type View struct {
	// Vault is a copy of the persisted state.
	Vault *domain.Vault
	// UnlockAt is the moment the final payout becomes eligible.
	UnlockAt time.Time
	// Eligible reports whether a beneficiary may call the final payout now.
	Eligible bool
	// Now is the ledger time the view was taken at.
	Now time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = provider.Tracer(tracerName)
	}
}

// mutation applies an operation to a private copy of a vault.
type mutation func(v *domain.Vault, now time.Time) ([]*domain.Event, error)

// Service is the global sequential ledger.
// Every mutation of every vault is serialized under one lock,
// so commits are totally ordered and sequence numbers are gapless.
type Service struct {
	// repo persists vaults and the record journal.
	repo repo.Repository
	// clock is read inside the lock, together with precondition checks.
	clock clock.Clock
	// tracer produces one span per operation.
	tracer trace.Tracer
	// factory derives addresses of new vaults.
	factory *factory.Factory
	// vaults holds the committed state of every vault.
	vaults map[domain.Address]*domain.Vault
	// order lists vault addresses in deployment order.
	order []domain.Address
	// seq is the last committed record sequence number.
	seq uint64
	// mu serializes every operation.
	mu sync.RWMutex
}

// New restores the ledger from the repository.
// The factory nonce continues from the number of persisted vaults.
func New(
	ctx context.Context,
	repository repo.Repository,
	factoryAddress domain.Address,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		repo:   repository,
		clock:  clock.System{},
		tracer: otel.Tracer(tracerName),
		vaults: make(map[domain.Address]*domain.Vault),
	}

	for _, opt := range opts {
		opt(s)
	}

	snapshot, err := repository.Load(ctx)

	switch {
	case err == nil:
		for _, v := range snapshot.Vaults {
			s.vaults[v.Address] = v
			s.order = append(s.order, v.Address)
		}

		s.seq = snapshot.LastSeq
	case errors.Is(err, repo.ErrNotFound):
		// Start with an empty ledger.
	default:
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	s.factory = factory.New(factoryAddress, uint64(len(s.order)))

	logger.InfoKV(ctx, "Ledger restored",
		"vaults", len(s.order),
		"last_seq", s.seq,
		"factory", factoryAddress.Hex())

	return s, nil
}

// CreateVault deploys a vault owned by the caller.
func (s *Service) CreateVault(ctx context.Context, caller domain.Address, req *factory.Request) (*Receipt, error) {
	ctx, span := s.startSpan(ctx, "CreateVault", caller, domain.Address{})
	defer span.End()

	var deployment factory.Request
	if req != nil {
		deployment = *req
	}

	deployment.Owner = caller.Hex()

	params, err := factory.Validate(&deployment)
	if err != nil {
		return nil, s.reject(ctx, span, "CreateVault", caller, domain.Address{}, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	nonce := s.factory.Nonce()

	v, event, err := s.factory.Create(params, now)
	if err != nil {
		return nil, s.reject(ctx, span, "CreateVault", caller, domain.Address{}, err)
	}

	span.SetAttributes(attribute.String("vault", v.Address.Hex()))

	receipt, err := s.commit(ctx, v, []*domain.Event{event}, now)
	if err != nil {
		s.factory = factory.New(s.factory.Address(), nonce)

		return nil, s.fail(ctx, span, "CreateVault", v.Address, err)
	}

	s.vaults[v.Address] = v
	s.order = append(s.order, v.Address)

	logger.InfoKV(ctx, "Vault created",
		"vault", v.Address.Hex(),
		"owner", v.Owner.Hex(),
		"beneficiaries", len(v.Beneficiaries),
		"unlock_period", v.UnlockPeriod,
		"tx_id", receipt.TxID)

	return receipt, nil
}

// Deposit credits value sent by the caller.
func (s *Service) Deposit(ctx context.Context, caller, vault domain.Address, amount *big.Int) (*Receipt, error) {
	return s.execute(ctx, "Deposit", caller, vault, func(v *domain.Vault, _ time.Time) ([]*domain.Event, error) {
		return single(v.Deposit(caller, amount))
	})
}

// Transfer pays value from the vault to a recipient.
func (s *Service) Transfer(ctx context.Context, caller, vault, to domain.Address, amount *big.Int) (*Receipt, error) {
	return s.execute(ctx, "Transfer", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return single(v.Transfer(caller, to, amount, now))
	})
}

// Withdraw pays value from the vault to its owner.
func (s *Service) Withdraw(ctx context.Context, caller, vault domain.Address, amount *big.Int) (*Receipt, error) {
	return s.execute(ctx, "Withdraw", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return single(v.Withdraw(caller, amount, now))
	})
}

// AddBeneficiary registers a beneficiary.
func (s *Service) AddBeneficiary(ctx context.Context, caller, vault, identity domain.Address) (*Receipt, error) {
	return s.execute(ctx, "AddBeneficiary", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return nil, v.AddBeneficiary(caller, identity, now)
	})
}

// RemoveBeneficiary unregisters a beneficiary.
func (s *Service) RemoveBeneficiary(ctx context.Context, caller, vault, identity domain.Address) (*Receipt, error) {
	return s.execute(ctx, "RemoveBeneficiary", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return nil, v.RemoveBeneficiary(caller, identity, now)
	})
}

// RefreshActivity records an owner heartbeat.
func (s *Service) RefreshActivity(ctx context.Context, caller, vault domain.Address) (*Receipt, error) {
	return s.execute(ctx, "RefreshActivity", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return single(v.RefreshActivity(caller, now))
	})
}

// UpdateUnlockPeriod changes the inactivity period.
func (s *Service) UpdateUnlockPeriod(ctx context.Context, caller, vault domain.Address, years int) (*Receipt, error) {
	return s.execute(ctx, "UpdateUnlockPeriod", caller, vault, func(v *domain.Vault, _ time.Time) ([]*domain.Event, error) {
		return single(v.UpdateUnlockPeriod(caller, years))
	})
}

// FinalPayout pays the whole balance to the calling beneficiary and seals the vault.
func (s *Service) FinalPayout(ctx context.Context, caller, vault, target domain.Address) (*Receipt, error) {
	return s.execute(ctx, "FinalPayout", caller, vault, func(v *domain.Vault, now time.Time) ([]*domain.Event, error) {
		return v.FinalPayout(caller, target, now)
	})
}

// GetVault returns the current state of a vault.
func (s *Service) GetVault(ctx context.Context, address domain.Address) (*View, error) {
	_, span := s.startSpan(ctx, "GetVault", domain.Address{}, address)
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vaults[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrVaultNotFound, address.Hex())
	}

	return newView(v, s.clock.Now()), nil
}

// ListVaults returns every vault in deployment order.
func (s *Service) ListVaults(ctx context.Context) []*View {
	_, span := s.startSpan(ctx, "ListVaults", domain.Address{}, domain.Address{})
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	result := make([]*View, 0, len(s.order))

	for _, address := range s.order {
		result = append(result, newView(s.vaults[address], now))
	}

	return result
}

// Records returns journal entries of a vault with Seq > afterSeq.
func (s *Service) Records(
	ctx context.Context,
	address domain.Address,
	afterSeq uint64,
	limit int,
) ([]*domain.Record, error) {
	ctx, span := s.startSpan(ctx, "Records", domain.Address{}, address)
	defer span.End()

	s.mu.RLock()
	_, ok := s.vaults[address]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrVaultNotFound, address.Hex())
	}

	records, err := s.repo.Records(ctx, address, afterSeq, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())

		return nil, fmt.Errorf("read records: %w", err)
	}

	return records, nil
}

// LastSeq returns the last committed sequence number.
func (s *Service) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seq
}

// execute runs a mutation on a copy of the vault and installs the copy only after
// the repository accepted the commit.
func (s *Service) execute(
	ctx context.Context,
	operation string,
	caller domain.Address,
	address domain.Address,
	fn mutation,
) (*Receipt, error) {
	ctx, span := s.startSpan(ctx, operation, caller, address)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.vaults[address]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrVaultNotFound, address.Hex())

		return nil, s.reject(ctx, span, operation, caller, address, err)
	}

	now := s.clock.Now()
	next := current.Clone()

	events, err := fn(next, now)
	if err != nil {
		return nil, s.reject(ctx, span, operation, caller, address, err)
	}

	receipt, err := s.commit(ctx, next, events, now)
	if err != nil {
		return nil, s.fail(ctx, span, operation, address, err)
	}

	s.vaults[address] = next

	logger.InfoKV(ctx, "Vault operation committed",
		"operation", operation,
		"vault", address.Hex(),
		"caller", caller.Hex(),
		"tx_id", receipt.TxID,
		"records", len(receipt.Records),
		"balance", next.Balance.String(),
		"sealed", next.Sealed)

	return receipt, nil
}

// commit numbers the events and persists them together with the vault.
// The caller must hold the write lock.
func (s *Service) commit(ctx context.Context, v *domain.Vault, events []*domain.Event, now time.Time) (*Receipt, error) {
	txID := uuid.NewString()
	records := make([]*domain.Record, 0, len(events))

	for i, event := range events {
		records = append(records, &domain.Record{
			Seq:         s.seq + uint64(i) + 1, //nolint:gosec // Index is never negative.
			TxID:        txID,
			Vault:       v.Address,
			CommittedAt: now,
			Event:       *event,
		})
	}

	if err := s.repo.Commit(ctx, v, records); err != nil {
		return nil, fmt.Errorf("commit ledger: %w", err)
	}

	s.seq += uint64(len(records))

	receipt := &Receipt{
		TxID:        txID,
		CommittedAt: now,
		Vault:       v.Clone(),
		Records:     make([]*domain.Record, 0, len(records)),
	}

	for _, record := range records {
		receipt.Records = append(receipt.Records, record.Clone())
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("tx_id", txID),
		attribute.Int("records", len(records)),
	)

	return receipt, nil
}

// reject logs and records a refused operation.
func (s *Service) reject(
	ctx context.Context,
	span trace.Span,
	operation string,
	caller domain.Address,
	address domain.Address,
	err error,
) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())

	logger.WarnKV(ctx, "Vault operation rejected",
		"operation", operation,
		"vault", address.Hex(),
		"caller", caller.Hex(),
		"reason", err.Error())

	return err
}

// fail logs and records a persistence failure.
func (s *Service) fail(ctx context.Context, span trace.Span, operation string, address domain.Address, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())

	logger.ErrorKV(ctx, "Vault operation failed to commit",
		"operation", operation,
		"vault", address.Hex(),
		"error", err)

	return err
}

// startSpan opens an operation span.
func (s *Service) startSpan(
	ctx context.Context,
	operation string,
	caller domain.Address,
	address domain.Address,
) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, 2)

	if caller != (domain.Address{}) {
		attrs = append(attrs, attribute.String("caller", caller.Hex()))
	}

	if address != (domain.Address{}) {
		attrs = append(attrs, attribute.String("vault", address.Hex()))
	}

	return s.tracer.Start(ctx, "ledger."+operation, trace.WithAttributes(attrs...))
}

// newView builds a View at the given ledger time.
func newView(v *domain.Vault, now time.Time) *View {
	return &View{
		Vault:    v.Clone(),
		UnlockAt: v.UnlockAt(),
		Eligible: v.Eligible(now),
		Now:      now,
	}
}

// single adapts a one-event operation to a mutation result.
func single(event *domain.Event, err error) ([]*domain.Event, error) {
	if err != nil {
		return nil, err
	}

	return []*domain.Event{event}, nil
}
