// Package observer exposes a read-only HTTP view of the vault ledger.
//
// Any party may inspect persisted vault state and the record journal;
// no route mutates the ledger.
package observer
