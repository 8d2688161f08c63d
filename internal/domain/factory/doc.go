// Package factory deploys new vault instances.
//
// The Factory validates construction parameters, derives the new vault
// address from its own address and a deployment nonce, and hands back the
// constructed vault together with a VaultCreated event. It keeps no
// reference to the vaults it creates.
package factory
