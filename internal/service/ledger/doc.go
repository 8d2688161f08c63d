// Package ledger is the global sequential ledger that owns every vault.
//
// Operations on all vaults are serialized under a single lock. The clock is
// read inside the lock, each operation runs against a private copy of the
// vault, and the copy replaces the committed state only after the repository
// accepted the vault together with the records the operation emitted.
package ledger
