// Package rpc defines the vault.v1.VaultService gRPC contract: message types,
// the service descriptor, a client stub and the mapping between domain
// errors and gRPC statuses.
//
// Messages travel as JSON through a codec registered under the "json"
// content subtype, so no generated protobuf code is involved.
package rpc
