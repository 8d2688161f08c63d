// Package heartbeat implements the owner-side liveness agent.
//
// The agent refreshes the activity timer of one vault on a fixed interval,
// warns when the unlock deadline gets close because refreshes keep failing,
// and exits once the vault has been sealed by a final payout.
package heartbeat
