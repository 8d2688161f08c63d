// Package ledger implements persistence for vault state and the record journal.
//
// FileRepository keeps the whole ledger in a JSON document on disk and is
// meant for single-node deployments. SQLRepository stores vaults and records
// in sqlite (modernc) or PostgreSQL through sqlx. Both commit a vault update
// together with the records it emitted, or nothing at all.
package ledger
