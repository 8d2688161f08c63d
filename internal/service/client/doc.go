// Package client implements the vault-cli commands.
//
// Each command connects to the ledger server with the caller token from
// the settings file, performs one operation and prints the receipt or the
// requested state.
package client
