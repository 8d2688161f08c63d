// Package config defines the settings shared by the vault binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validate fills in defaults: a file-backed ledger, a five second timeout,
// a daily heartbeat and the default JWT issuer.
package config
