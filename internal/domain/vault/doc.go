// Package vault contains the dead-man's-switch vault state machine.
//
// A Vault holds a single native balance on behalf of its owner. The owner
// moves funds and periodically signals liveness; once the owner has been
// silent for the unlock period, a registered beneficiary may trigger the
// final payout, which drains the balance and seals the vault forever.
//
// Every operation validates all of its preconditions before it mutates
// anything, so a rejected call leaves the vault untouched.
package vault
