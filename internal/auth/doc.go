// Package auth issues and verifies caller tokens and carries the
// authenticated caller address through gRPC requests.
//
// Tokens are HS256 JWTs whose subject is the caller's hex address.
package auth
