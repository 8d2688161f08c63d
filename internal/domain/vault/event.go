package vault

import (
	"math/big"
	"time"
)

// EventKind names the type of a record emitted by a vault operation.
type EventKind string

const (
	// EventVaultCreated is emitted once when the factory deploys a vault.
	EventVaultCreated EventKind = "VaultCreated"
	// EventDeposit is emitted for every accepted inbound transfer.
	EventDeposit EventKind = "Deposit"
	// EventPayment is emitted whenever value leaves the vault.
	EventPayment EventKind = "Payment"
	// EventLastActivityUpdated is emitted by the owner heartbeat.
	EventLastActivityUpdated EventKind = "LastActivityUpdated"
	// EventUnlockPeriodUpdated is emitted when the owner changes the unlock period.
	EventUnlockPeriodUpdated EventKind = "UnlockPeriodUpdated"
	// EventGoodbyeWorld is emitted by the final payout and carries the epitaph.
	EventGoodbyeWorld EventKind = "GoodbyeWorld"
)

// Event is a record produced by a successful operation.
// Only the fields relevant to Kind are populated.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind
	// From is the sender of a deposit or the creator of a vault.
	From Address
	// To is the recipient of a payment.
	To Address
	// Amount is the value moved by a deposit or payment.
	Amount *big.Int
	// UnlockPeriod is the new period for EventUnlockPeriodUpdated.
	UnlockPeriod time.Duration
	// Timestamp is the activity time for EventLastActivityUpdated.
	Timestamp time.Time
	// Message is the epitaph for EventGoodbyeWorld.
	Message string
}

// Record is an event committed to the ledger journal.
type Record struct {
	// Seq is the global commit sequence number, starting at 1.
	Seq uint64
	// TxID identifies the operation that emitted the record.
	TxID string
	// Vault is the address of the vault that emitted the record.
	Vault Address
	// CommittedAt is the ledger time of the commit.
	CommittedAt time.Time

	Event
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Amount = cloneAmount(r.Amount)

	return &cloned
}

// cloneAmount copies a big integer, keeping nil as nil.
func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}

	return new(big.Int).Set(v)
}
