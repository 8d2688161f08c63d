// Package common holds helpers shared by the vault client binaries.
//
// It provides a gRPC client wrapper that attaches the caller token, applies
// call timeouts and converts rejections back into domain errors, plus a
// helper that describes the local agent (hostname/username) for logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
