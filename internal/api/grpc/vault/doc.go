// Package vault exposes the ledger service over the vault.v1.VaultService gRPC API.
package vault
