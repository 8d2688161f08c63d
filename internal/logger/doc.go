// Package logger holds the process-wide zap logger shared by vault-server,
// vault-cli and vault-heartbeat.
//
// Setup picks the level and the console or JSON encoder from the settings file.
// Handlers and agents carry a named logger in their context (WithName, WithKV,
// WithFields) so every ledger decision is logged with its vault and caller.
// The KV helpers (InfoKV, WarnKV, ErrorKV) read that logger back from the context.
package logger
